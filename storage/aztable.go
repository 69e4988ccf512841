package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

const (
	defaultStateTable = "plannerstate"
	statePartition    = "state"
)

// TableKV stores each key as a row in one Azure Table, with the document JSON
// held in a single Value column.
type TableKV struct {
	table *aztables.Client
}

func newTableKV() (*TableKV, error) {
	connStr := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	tableName := os.Getenv("STATE_TABLE")
	if tableName == "" {
		tableName = defaultStateTable
	}
	return NewTableKV(connStr, tableName)
}

// NewTableKV creates the client and the table when it does not exist yet.
func NewTableKV(connStr, tableName string) (*TableKV, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	if _, err := svc.CreateTable(context.Background(), tableName, nil); err != nil && !isConflict(err) {
		return nil, err
	}
	return &TableKV{table: svc.NewClient(tableName)}, nil
}

type stateEntity struct {
	aztables.Entity
	Value string `json:"Value"`
}

func (t *TableKV) GetString(ctx context.Context, key string) (string, bool, error) {
	resp, err := t.table.GetEntity(ctx, statePartition, key, nil)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	var ent stateEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return "", false, err
	}
	return ent.Value, true, nil
}

func (t *TableKV) SetBody(ctx context.Context, key string, value []byte) error {
	ent := stateEntity{
		Entity: aztables.Entity{PartitionKey: statePartition, RowKey: key},
		Value:  string(value),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	})
	return err
}

func (t *TableKV) Ping(ctx context.Context) error {
	_, _, err := t.GetString(ctx, "ping")
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func isConflict(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict
}

package storage

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"school-planner/domain"
)

// StateChange is the message published after every accepted write. Consumers
// get counts, not the document itself, and fetch the state when they care.
type StateChange struct {
	Version   int    `json:"version"`
	UpdatedAt string `json:"updated_at"`
	Courses   int    `json:"courses"`
	Tasks     int    `json:"tasks"`
	Grades    int    `json:"grades"`
}

// QueueFeed publishes state changes to an Azure Storage queue.
type QueueFeed struct {
	queue *azqueue.QueueClient
}

// NewQueueFeedFromEnv returns nil without error when no queue is configured.
// The feed is an optional side channel, never a requirement.
func NewQueueFeedFromEnv() (*QueueFeed, error) {
	connStr := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	queueName := os.Getenv("STATE_CHANGE_QUEUE")
	if connStr == "" || queueName == "" {
		return nil, nil
	}
	return NewQueueFeed(connStr, queueName)
}

// NewQueueFeed builds a queue client for the given connection string.
func NewQueueFeed(connStr, queueName string) (*QueueFeed, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueFeed{queue: q}, nil
}

// Publish enqueues a change notification for the saved document.
func (f *QueueFeed) Publish(ctx context.Context, doc domain.Document, updatedAt time.Time) error {
	msg := StateChange{
		Version:   doc.Version,
		UpdatedAt: updatedAt.Format(time.RFC3339Nano),
		Courses:   len(doc.Courses),
		Tasks:     len(doc.Tasks),
		Grades:    len(doc.Grades),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = f.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

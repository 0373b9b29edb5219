// Package tasks holds the handlers built into the delayq binary.
package tasks

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/delayq/pkg/queue"
)

// Register adds every built-in task to r.
func Register(r *queue.Registry, log *slog.Logger, client *http.Client) error {
	if err := queue.RegisterTask[LogPayload](r, NewLog(log)); err != nil {
		return err
	}
	return queue.RegisterTask[WebhookPayload](r, NewWebhook(client, log))
}

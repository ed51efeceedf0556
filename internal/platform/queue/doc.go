// Package queue hands committed enrollment events to background consumers
// through asynq task queues stored in Redis.
package queue

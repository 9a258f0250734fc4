package service

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// fcmBatchLimit is the most tokens one multicast request accepts.
const fcmBatchLimit = 500

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
	log    *zap.Logger
}

// NewFCMService creates an FCM service. Returns nil if Firebase is not configured.
func NewFCMService(ctx context.Context, serviceAccountPath string, log *zap.Logger) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Error("firebase app init failed", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Error("firebase messaging client failed", zap.Error(err))
		return nil
	}
	return &FCMService{client: client, log: log}
}

// Push sends one notification to every token, in batches. A nil service is a no-op.
func (s *FCMService) Push(ctx context.Context, tokens []string, title, body string, data map[string]interface{}) error {
	if s == nil || len(tokens) == 0 {
		return nil
	}
	payload := stringData(data)
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := start + fcmBatchLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		msg := &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: payload,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{
						Sound: "default",
					},
				},
			},
		}
		resp, err := s.client.SendEachForMulticast(ctx, msg)
		if err != nil {
			s.log.Error("fcm multicast failed", zap.Error(err))
			return err
		}
		if resp.FailureCount > 0 {
			s.log.Warn("fcm multicast partial failure",
				zap.Int("success", resp.SuccessCount),
				zap.Int("failure", resp.FailureCount))
		}
	}
	return nil
}

// stringData converts data values to strings (FCM requires string values).
func stringData(data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case uint, uint64, int, int64:
			out[k] = fmt.Sprintf("%d", val)
		case float64:
			out[k] = fmt.Sprintf("%g", val)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out
}

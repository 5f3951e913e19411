package push

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Sender submits a single push message to the external mobile push
// gateway. Errors are non-fatal to callers; the delivery gateway logs
// and swallows them.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// FCMSender is the Firebase Cloud Messaging implementation of Sender.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes the FCM client. Credentials come from the
// FCM_SERVICE_ACCOUNT_JSON environment variable (base64-encoded service
// account JSON) when set, falling back to the configured key file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("FCM: initializing from FCM_SERVICE_ACCOUNT_JSON environment variable")
	} else {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s, and FCM_SERVICE_ACCOUNT_JSON is not set", credentialsFile)
		}
		opt = option.WithCredentialsFile(credentialsFile)
		log.Printf("FCM: initializing from credentials file %s", credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMSender{client: client}, nil
}

// Send submits one message to one device token. The payload is mirrored
// into the data field so the client can correlate it with the live
// channel and deduplicate.
func (s *FCMSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("fcm send to token %s failed: %w", token, err)
	}
	return nil
}

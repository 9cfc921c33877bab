package fcm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Error codes reported back for failed tokens. Only the first three mark a
// token as permanently dead; everything else is a transient delivery failure.
const (
	ErrCodeUnregistered    = "unregistered"
	ErrCodeInvalidArgument = "invalid-argument"
	ErrCodeNotFound        = "not-found"
	ErrCodeUnavailable     = "unavailable"
	ErrCodeInternal        = "internal"
	ErrCodeQuotaExceeded   = "quota-exceeded"
	ErrCodeUnknown         = "unknown"
)

// MaxTokensPerBatch is the gateway's client-side ceiling on tokens per
// multicast call. Calls carrying more are rejected before any network I/O.
const MaxTokensPerBatch = 500

// Payload is the delivery payload handed to the gateway. Data is the typed
// block the client app uses for deep-link routing.
type Payload struct {
	Title        string
	Body         string
	Icon         string
	Data         map[string]string
	HighPriority bool
	TTL          time.Duration
	Channel      string
}

// TokenFailure reports one token that a multicast could not reach.
type TokenFailure struct {
	Token     string
	ErrorCode string
}

// BatchResult aggregates one multicast call.
type BatchResult struct {
	SuccessCount int
	FailureCount int
	Failures     []TokenFailure
}

// messagingAPI is the slice of the Firebase messaging client this wrapper
// uses. Satisfied by *messaging.Client; tests substitute a fake.
type messagingAPI interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
	SendEachForMulticastDryRun(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient messagingAPI
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &Client{messagingClient: messagingClient}, nil
}

// SendBatch sends one multicast message to the given tokens. The caller is
// responsible for keeping len(tokens) within the gateway's multicast ceiling.
func (c *Client) SendBatch(ctx context.Context, tokens []string, payload Payload) (*BatchResult, error) {
	if len(tokens) == 0 {
		return &BatchResult{}, nil
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, c.buildMulticast(tokens, payload))
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	result := &BatchResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
	}
	for i, resp := range response.Responses {
		if !resp.Success {
			result.Failures = append(result.Failures, TokenFailure{
				Token:     tokens[i],
				ErrorCode: classifyError(resp.Error),
			})
		}
	}
	return result, nil
}

// ValidateTokens dry-runs a minimal message against each token and returns
// the tokens the gateway reports as dead. Samples larger than the multicast
// ceiling are validated in chunks. Used by the stale-token sweep.
func (c *Client) ValidateTokens(ctx context.Context, tokens []string) ([]string, error) {
	var dead []string
	for start := 0; start < len(tokens); start += MaxTokensPerBatch {
		end := start + MaxTokensPerBatch
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		response, err := c.messagingClient.SendEachForMulticastDryRun(ctx, &messaging.MulticastMessage{
			Tokens: chunk,
			Data:   map[string]string{"validation": "true"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to dry-run validate tokens: %w", err)
		}

		for i, resp := range response.Responses {
			if resp.Success {
				continue
			}
			if code := classifyError(resp.Error); IsTokenDeathCode(code) {
				dead = append(dead, chunk[i])
			}
		}
	}
	return dead, nil
}

func (c *Client) buildMulticast(tokens []string, payload Payload) *messaging.MulticastMessage {
	androidPriority := "normal"
	apnsPriority := "5"
	if payload.HighPriority {
		androidPriority = "high"
		apnsPriority = "10"
	}

	ttl := payload.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			TTL:      &ttl,
			Notification: &messaging.AndroidNotification{
				ChannelID: payload.Channel,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":   apnsPriority,
				"apns-expiration": strconv.FormatInt(time.Now().Add(ttl).Unix(), 10),
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: payload.Title,
				Body:  payload.Body,
				Icon:  payload.Icon,
			},
		},
	}
}

// IsTokenDeathCode reports whether an error code means the token itself is
// permanently gone, as opposed to a transient delivery failure.
func IsTokenDeathCode(code string) bool {
	switch code {
	case ErrCodeUnregistered, ErrCodeInvalidArgument, ErrCodeNotFound:
		return true
	}
	return false
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return ErrCodeUnregistered
	case messaging.IsInvalidArgument(err):
		return ErrCodeInvalidArgument
	case messaging.IsUnavailable(err):
		return ErrCodeUnavailable
	case messaging.IsQuotaExceeded(err):
		return ErrCodeQuotaExceeded
	case messaging.IsInternal(err):
		return ErrCodeInternal
	default:
		return ErrCodeUnknown
	}
}

package models

import (
	"time"
)

// ChannelType identifies the notification transport of a channel
type ChannelType string

const (
	ChannelTypeEmail   ChannelType = "EMAIL"
	ChannelTypeSlack   ChannelType = "SLACK"
	ChannelTypeWebhook ChannelType = "WEBHOOK"
)

// NotificationChannel represents a configured destination for alert
// notifications. A rule may reference any number of channels.
type NotificationChannel struct {
	ID      string      `json:"id"`
	RuleID  string      `json:"ruleId"`
	Type    ChannelType `json:"type"`
	Name    string      `json:"name"`
	Enabled bool        `json:"enabled"`

	// EMAIL: comma-separated recipient list
	Recipients string `json:"recipients,omitempty"`

	// SLACK: incoming webhook URL
	SlackWebhookURL string `json:"slackWebhookUrl,omitempty"`

	// WEBHOOK: endpoint plus optional method and custom headers
	WebhookURL     string `json:"webhookUrl,omitempty"`
	WebhookMethod  string `json:"webhookMethod,omitempty"`  // POST/PUT/PATCH, default POST
	WebhookHeaders string `json:"webhookHeaders,omitempty"` // JSON object of header name to value

	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	SuccessCount  int64      `json:"successCount"`
	FailureCount  int64      `json:"failureCount"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
}

// ChannelStatistics summarizes delivery outcomes for a channel
type ChannelStatistics struct {
	ChannelID    string `json:"channelId"`
	SuccessCount int64  `json:"successCount"`
	FailureCount int64  `json:"failureCount"`
	TotalCount   int64  `json:"totalCount"`
}

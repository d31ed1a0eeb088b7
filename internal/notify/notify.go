// Package notify is the boundary between the core and the messaging transport.
package notify

import (
	"context"
	"fmt"
	"sync"
)

// Kind tags a message so transports can pick a layout.
type Kind string

const (
	KindLikeCount      Kind = "like_count"
	KindMatch          Kind = "match"
	KindReferralReward Kind = "referral_reward"
	KindPremium        Kind = "premium"
)

// Message is a notification request for one recipient.
type Message struct {
	UserID     uint64
	TelegramID int64
	Kind       Kind
	Text       string
	// Username of the counterpart on a match, used for a contact button.
	ContactUsername string
}

// Notifier delivers messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LikeCount announces unanswered likes without naming anyone.
func LikeCount(n int64) string {
	if n == 1 {
		return "Someone liked your profile! Open /likes to see who."
	}
	return fmt.Sprintf("%d people liked your profile! Open /likes to see who.", n)
}

// Match announces a mutual like.
func Match(name string) string {
	return fmt.Sprintf("It's a match! You and %s liked each other.", name)
}

// ReferralReward announces the referral bonus.
func ReferralReward(days int) string {
	return fmt.Sprintf("Thanks for inviting your friends! You got %d day(s) of premium.", days)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// Recorder keeps every message in memory. Used by tests and the CLI dry run.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
	return nil
}

// For returns the messages sent to a user, in order.
func (r *Recorder) For(userID uint64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.Messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// Count returns how many messages of kind were sent to a user.
func (r *Recorder) Count(userID uint64, kind Kind) int {
	n := 0
	for _, m := range r.For(userID) {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

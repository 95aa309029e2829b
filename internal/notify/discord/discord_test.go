package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/seatplan/internal/emergency"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/notify"
	"github.com/zulandar/seatplan/internal/part"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock session ---

type mockSession struct {
	errs    []error
	calls   int
	channel string
	embeds  []*discordgo.MessageEmbed
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	var err error
	if m.calls < len(m.errs) {
		err = m.errs[m.calls]
	}
	m.calls++
	if err != nil {
		return nil, err
	}
	m.channel = channelID
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func rateLimited() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

func testEvent() notify.Event {
	to := grid.Position{Row: 1, Col: 2}
	return notify.Event{
		ArrangementID: 4,
		Record: emergency.Record{
			Type:        emergency.Available,
			MemberID:    "a1",
			MemberName:  "Park",
			Part:        part.Alto,
			ProcessMode: string(emergency.AutoPlace),
			AddedTo:     &to,
		},
	}
}

func newTestNotifier(t *testing.T, sess *mockSession) *Notifier {
	t.Helper()
	n, err := New(Opts{ChannelID: "C1", Session: sess})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.baseBackoff = time.Millisecond
	n.maxBackoff = 2 * time.Millisecond
	return n
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{BotToken: "x"}); err == nil {
		t.Error("expected error for missing channel ID")
	}
	if _, err := New(Opts{ChannelID: "C1"}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := New(Opts{ChannelID: "C1", BotToken: "token"}); err != nil {
		t.Errorf("New with token: %v", err)
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	sess := &mockSession{}
	n := newTestNotifier(t, sess)

	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sess.channel != "C1" {
		t.Errorf("channel = %q, want C1", sess.channel)
	}
	if len(sess.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(sess.embeds))
	}
	e := sess.embeds[0]
	if e.Title != "Park is back" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Color != 0x36a64f {
		t.Errorf("Color = %#x, want %#x", e.Color, 0x36a64f)
	}
	var seat string
	for _, f := range e.Fields {
		if f.Name == "New seat" {
			seat = f.Value
			if !f.Inline {
				t.Error("New seat field should be inline")
			}
		}
	}
	if seat != "2-3" {
		t.Errorf("New seat = %q, want 2-3", seat)
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{"success", nil, false, 1},
		{"rate limited then ok", []error{rateLimited()}, false, 2},
		{"other error", []error{errors.New("nope")}, true, 1},
		{"non-429 rest error", []error{&discordgo.RESTError{Response: &http.Response{StatusCode: 403}}}, true, 1},
		{"always rate limited", []error{rateLimited(), rateLimited(), rateLimited(), rateLimited()}, true, maxRetries + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &mockSession{errs: tt.errs}
			err := newTestNotifier(t, sess).Notify(context.Background(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if sess.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", sess.calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryOnRateLimit_LogsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sess := &mockSession{errs: []error{rateLimited()}}
	n, err := New(Opts{ChannelID: "C1", Session: sess, Log: zap.New(core)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.baseBackoff = time.Millisecond

	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("warnings logged = %d, want 1", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["channel"] != "C1" || fields["attempt"] != int64(1) {
		t.Errorf("log fields = %v", fields)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"ff9800", 0xff9800},
		{"#2196F3", 0x2196f3},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ProductImporter/internal/config"
)

func TestPublishReportPostsForm(t *testing.T) {
	t.Parallel()

	var (
		path   string
		chatID string
		text   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		chatID = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "-100", Endpoint: server.URL + "/"}, server.Client())
	require.NoError(t, n.PublishReport(context.Background(), "import success: created=3"))

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "-100", chatID)
	assert.Equal(t, "import success: created=3", text)
}

func TestPublishReportErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "1", Endpoint: server.URL}, server.Client())
	assert.Error(t, n.PublishReport(context.Background(), "x"))

	unconfigured := NewNotifier(config.TelegramConfig{}, nil)
	assert.False(t, unconfigured.Configured())
	assert.Error(t, unconfigured.PublishReport(context.Background(), "x"))
}

func TestTruncateKeepsRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ש", 5000)
	out := truncate(long, maxMessageRunes)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(out))
	assert.Equal(t, "short", truncate("short", maxMessageRunes))
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"grievline/internal/config"
	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
)

const (
	defaultNotifyInterval = 2 * time.Second
	defaultNotifyTimeout  = 5 * time.Second
	defaultNotifyBatch    = 100
)

// notifier tails the audit log and posts matching entries to configured
// webhooks. Delivery is fire and forget: the engine never waits on it
// and a dead endpoint never blocks a transition.
type notifier struct {
	engine   lifecycle.Engine
	webhooks []config.Webhook
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

func startNotifier(e lifecycle.Engine) {
	if e.Config == nil || len(e.Config.Notifications.Webhooks) == 0 {
		return
	}
	n := &notifier{
		engine:   e,
		webhooks: e.Config.Notifications.Webhooks,
		client:   &http.Client{Timeout: defaultNotifyTimeout},
		cursors:  make(map[int]int64),
	}
	go n.run()
}

func (n *notifier) run() {
	ticker := time.NewTicker(defaultNotifyInterval)
	defer ticker.Stop()
	for {
		n.dispatchAll()
		<-ticker.C
	}
}

func (n *notifier) dispatchAll() {
	for i, hook := range n.webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		n.dispatchWebhook(i, hook)
	}
}

func (n *notifier) dispatchWebhook(idx int, hook config.Webhook) {
	ctx := context.Background()
	cursor := n.cursorFor(idx)
	entries, err := n.engine.Repo.ListAuditLogAfter(ctx, cursor, defaultNotifyBatch)
	if err != nil {
		log.Printf("notify: fetch audit entries failed: %v", err)
		return
	}
	filter := newActionFilter(hook.Actions)
	for _, entry := range entries {
		if !filter.match(entry.Action) {
			n.setCursor(idx, entry.ID)
			continue
		}
		if err := n.post(ctx, hook, entry); err != nil {
			log.Printf("notify: deliver to %s failed: %v", hook.URL, err)
			return
		}
		n.setCursor(idx, entry.ID)
	}
}

func (n *notifier) cursorFor(idx int) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cur, ok := n.cursors[idx]; ok {
		return cur
	}
	// Start at the tail; old entries are history, not notifications.
	entries, err := n.engine.Repo.ListAuditLog(context.Background(), repo.AuditFilter{Limit: 1})
	var cur int64
	if err != nil {
		log.Printf("notify: init cursor failed: %v", err)
	} else if len(entries) > 0 {
		cur = entries[0].ID
	}
	n.cursors[idx] = cur
	return cur
}

func (n *notifier) setCursor(idx int, value int64) {
	n.mu.Lock()
	n.cursors[idx] = value
	n.mu.Unlock()
}

type notifyEvent struct {
	ID           int64           `json:"id"`
	TS           string          `json:"ts"`
	ActorID      string          `json:"actor_id"`
	Action       string          `json:"action"`
	Outcome      string          `json:"outcome"`
	ResourceKind string          `json:"resource_kind,omitempty"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
}

func (n *notifier) post(ctx context.Context, hook config.Webhook, entry domain.AuditLogEntry) error {
	meta := json.RawMessage([]byte("{}"))
	if entry.Metadata != "" && json.Valid([]byte(entry.Metadata)) {
		meta = json.RawMessage([]byte(entry.Metadata))
	}
	body := notifyEvent{
		ID:           entry.ID,
		TS:           entry.TS,
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		Outcome:      entry.Outcome,
		ResourceKind: entry.ResourceKind,
		ResourceID:   entry.ResourceID,
		Description:  entry.Description,
		Metadata:     meta,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Grievline-Event", entry.Action)
	req.Header.Set("X-Grievline-Delivery", fmt.Sprintf("%d", entry.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Grievline-Secret", hook.Secret)
	}
	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type actionFilter struct {
	all bool
	set map[string]struct{}
}

func newActionFilter(actions []string) actionFilter {
	if len(actions) == 0 {
		return actionFilter{all: true}
	}
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		key := strings.TrimSpace(a)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return actionFilter{all: true}
	}
	return actionFilter{set: set}
}

func (f actionFilter) match(action string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[action]
	return ok
}

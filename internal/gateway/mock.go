package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// MockClient is an in-memory Gateway for tests. It records every mutation and can be
// told to fail. Use NewMockClient instead of NewClient to avoid real API calls.
type MockClient struct {
	mu sync.Mutex

	Devices  []models.Device
	Team     []models.Member
	Labels   []models.Label
	Webhooks []models.Webhook

	// Err, when set, is returned by every call except SendMessage.
	Err error
	// FailSends makes the next N SendMessage calls fail with SendErr.
	FailSends int
	SendErr   error

	Sent            []map[string]interface{}
	ChatLabels      map[string][]string
	Metadata        map[string][]models.MetadataEntry
	Owners          map[string]string
	CreatedLabels   []models.Label
	DeletedWebhooks []string
	Calls           map[string]int
}

var _ Gateway = (*MockClient)(nil)

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		ChatLabels: make(map[string][]string),
		Metadata:   make(map[string][]models.MetadataEntry),
		Owners:     make(map[string]string),
		Calls:      make(map[string]int),
	}
}

func (m *MockClient) call(name string) error {
	m.Calls[name]++
	return m.Err
}

// CallCount returns how many times the named method was called.
func (m *MockClient) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

// SentMessages returns a copy of the recorded send requests.
func (m *MockClient) SentMessages() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, len(m.Sent))
	copy(out, m.Sent)
	return out
}

func (m *MockClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ListDevices"); err != nil {
		return nil, err
	}
	return m.Devices, nil
}

func (m *MockClient) ListTeam(ctx context.Context, deviceID string) ([]models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ListTeam"); err != nil {
		return nil, err
	}
	return m.Team, nil
}

func (m *MockClient) ListLabels(ctx context.Context, deviceID string) ([]models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ListLabels"); err != nil {
		return nil, err
	}
	return m.Labels, nil
}

func (m *MockClient) CreateLabel(ctx context.Context, deviceID string, label models.Label) (*models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateLabel"); err != nil {
		return nil, err
	}
	label.ID = fmt.Sprintf("label-%d", len(m.Labels)+1)
	m.Labels = append(m.Labels, label)
	m.CreatedLabels = append(m.CreatedLabels, label)
	return &label, nil
}

func (m *MockClient) UpdateChatLabels(ctx context.Context, deviceID, chatID string, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UpdateChatLabels"); err != nil {
		return err
	}
	m.ChatLabels[chatID] = append([]string(nil), labels...)
	return nil
}

func (m *MockClient) UpdateContactMetadata(ctx context.Context, deviceID, chatID string, entries []models.MetadataEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UpdateContactMetadata"); err != nil {
		return err
	}
	m.Metadata[chatID] = append(m.Metadata[chatID], entries...)
	return nil
}

func (m *MockClient) AssignChat(ctx context.Context, deviceID, chatID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AssignChat"); err != nil {
		return err
	}
	m.Owners[chatID] = agentID
	return nil
}

func (m *MockClient) UnassignChat(ctx context.Context, deviceID, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UnassignChat"); err != nil {
		return err
	}
	delete(m.Owners, chatID)
	return nil
}

func (m *MockClient) SendMessage(ctx context.Context, body map[string]interface{}) (*models.DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["SendMessage"]++
	if m.FailSends > 0 {
		m.FailSends--
		err := m.SendErr
		if err == nil {
			err = &APIError{Status: 500, Message: "mock send failure"}
		}
		return nil, err
	}
	m.Sent = append(m.Sent, body)
	phone, _ := body["phone"].(string)
	return &models.DeliveryResult{
		ID:     fmt.Sprintf("mock-msg-%d", len(m.Sent)),
		Status: "queued",
		Phone:  phone,
	}, nil
}

func (m *MockClient) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ListWebhooks"); err != nil {
		return nil, err
	}
	return append([]models.Webhook(nil), m.Webhooks...), nil
}

func (m *MockClient) CreateWebhook(ctx context.Context, webhook models.Webhook) (*models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateWebhook"); err != nil {
		return nil, err
	}
	webhook.ID = fmt.Sprintf("wh-%d", len(m.Webhooks)+1)
	webhook.Status = "active"
	m.Webhooks = append(m.Webhooks, webhook)
	return &webhook, nil
}

func (m *MockClient) DeleteWebhook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeleteWebhook"); err != nil {
		return err
	}
	kept := m.Webhooks[:0]
	for _, w := range m.Webhooks {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	m.Webhooks = kept
	m.DeletedWebhooks = append(m.DeletedWebhooks, id)
	return nil
}

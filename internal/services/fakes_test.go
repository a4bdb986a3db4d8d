package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/docqa/internal/core"
	"github.com/markdave123-py/docqa/internal/models"
)

const testDim = 32

// bagEmbedder hashes each word into a bucket so texts sharing words score
// higher. It satisfies both the gateway-facing and index-facing contracts.
type bagEmbedder struct {
	err error
}

func bag(text string) []float32 {
	v := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := 0
		for _, r := range w {
			h = h*31 + int(r)
		}
		if h < 0 {
			h = -h
		}
		v[h%testDim]++
	}
	v[testDim-1] += 0.01
	return v
}

func (b *bagEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	return bag(text), nil
}

func (b *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bag(t)
	}
	return out, nil
}

func (b *bagEmbedder) Dimension() int { return testDim }

// scriptedLLM returns replies in order and records every call.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]core.Message
	params  []core.GenerateParams
}

func (l *scriptedLLM) Complete(_ context.Context, messages []core.Message, params core.GenerateParams) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, messages)
	l.params = append(l.params, params)
	if l.err != nil {
		return "", l.err
	}
	if len(l.replies) == 0 {
		return "ok", nil
	}
	r := l.replies[0]
	l.replies = l.replies[1:]
	return r, nil
}

func (l *scriptedLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// memoryDB is an in-memory core.DbClient.
type memoryDB struct {
	mu        sync.Mutex
	users     map[string]*models.User
	docs      map[string]*models.Document
	analyses  map[string]string
	chats     []models.ChatMessage
	failChats bool
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		users:    map[string]*models.User{},
		docs:     map[string]*models.Document{},
		analyses: map[string]string{},
	}
}

var _ core.DbClient = (*memoryDB)(nil)

func (m *memoryDB) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errors.New("duplicate email")
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryDB) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryDB) CreateDocument(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memoryDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryDB) ListDocumentsByUser(_ context.Context, userID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryDB) UpdateDocumentStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	d.Status = status
	return nil
}

func (m *memoryDB) SaveDocumentSummary(_ context.Context, id string, s core.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	d.Title = s.Title
	d.Status = models.StatusReady
	m.analyses[id] = s.Analysis
	return nil
}

func (m *memoryDB) GetDocumentAnalysis(_ context.Context, id string) (*models.DocumentAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[id]
	if !ok {
		return nil, nil
	}
	return &models.DocumentAnalysis{DocumentID: id, Analysis: a}, nil
}

func (m *memoryDB) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	delete(m.analyses, id)
	kept := m.chats[:0]
	for _, c := range m.chats {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	m.chats = kept
	return nil
}

func (m *memoryDB) AddChatMessage(_ context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failChats {
		return errors.New("chat_history unavailable")
	}
	msg.ID = "chat-" + time.Now().Format("150405.000000000")
	msg.CreatedAt = time.Now()
	m.chats = append(m.chats, *msg)
	return nil
}

func (m *memoryDB) ListChatMessages(_ context.Context, docID string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChatMessage
	for _, c := range m.chats {
		if c.DocumentID == docID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryDB) ListDocumentHistory(_ context.Context, userID string) ([]models.DocumentHistory, error) {
	docs, _ := m.ListDocumentsByUser(context.Background(), userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.DocumentHistory, 0, len(docs))
	for _, d := range docs {
		h := models.DocumentHistory{DocumentID: d.ID, FileName: d.FileName, Title: d.Title, CreatedAt: d.CreatedAt}
		for i := len(m.chats) - 1; i >= 0; i-- {
			if m.chats[i].DocumentID == d.ID {
				c := m.chats[i]
				h.LastChat = &c
				break
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func (m *memoryDB) Close() error { return nil }

// memoryObjects is an in-memory core.ObjectClient.
type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryObjects() *memoryObjects { return &memoryObjects{objects: map[string][]byte{}} }

var _ core.ObjectClient = (*memoryObjects)(nil)

func (o *memoryObjects) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failPut {
		return "", errors.New("s3 upload failed")
	}
	o.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return "s3://" + bucket + "/" + key, nil
}

func (o *memoryObjects) DeleteFile(_ context.Context, bucket, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, bucket+"/"+key)
	return nil
}

func (o *memoryObjects) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

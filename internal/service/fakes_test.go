package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bigkaa/capystore/internal/domain/model"
	"github.com/bigkaa/capystore/internal/repository"
	"github.com/bigkaa/capystore/internal/storage/filestore"
)

// ignoreLRUJanitor пропускает горутину очистки expirable.LRU:
// она живёт до конца процесса и остаётся от тестов ImageService.
var ignoreLRUJanitor = goleak.IgnoreAnyFunction(
	"github.com/hashicorp/golang-lru/v2/expirable.NewLRU[...].func1",
)

// memRepo — in-memory реализация repository.CapybaraRepository.
// Соблюдает уникальность отпечатка и условные обновления.
type memRepo struct {
	mu   sync.Mutex
	recs map[string]*model.Capybara
	// failCounts — ошибка подсчёта
	failCounts error
}

func newMemRepo() *memRepo {
	return &memRepo{recs: make(map[string]*model.Capybara)}
}

func clone(c *model.Capybara) *model.Capybara {
	cp := *c
	if c.Email != nil {
		e := *c.Email
		cp.Email = &e
	}
	if c.Used != nil {
		u := *c.Used
		cp.Used = &u
	}
	return &cp
}

func (r *memRepo) Insert(_ context.Context, c *model.Capybara) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[c.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range r.recs {
		if existing.Fingerprint == c.Fingerprint {
			return repository.ErrConflict
		}
	}
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	c.Approved = false
	c.Used = nil
	c.UpdatedAt = c.Created
	r.recs[c.ID] = clone(c)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.Capybara, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

func (r *memRepo) FindByFingerprint(_ context.Context, fp string) (*model.Capybara, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.recs {
		if c.Fingerprint == fp {
			return clone(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) Approve(_ context.Context, id, name string) (*model.Capybara, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c.Approved {
		return nil, repository.ErrStateChanged
	}
	c.Approved = true
	c.Name = name
	c.Email = nil
	c.UpdatedAt = time.Now().UTC()
	return clone(c), nil
}

func (r *memRepo) DeletePending(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.recs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.Approved {
		return repository.ErrStateChanged
	}
	delete(r.recs, id)
	return nil
}

func (r *memRepo) SamplePending(_ context.Context, limit int) ([]*model.Capybara, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Capybara
	for _, c := range r.recs {
		if len(out) == limit {
			break
		}
		if !c.Approved {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func (r *memRepo) CountRemaining(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCounts != nil {
		return 0, r.failCounts
	}
	n := 0
	for _, c := range r.recs {
		if c.Available() {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountApproved(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCounts != nil {
		return 0, r.failCounts
	}
	n := 0
	for _, c := range r.recs {
		if c.Approved {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListPendingBefore(_ context.Context, before time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, c := range r.recs {
		if !c.Approved && c.Created.Before(before) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (r *memRepo) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.recs[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// put кладёт запись напрямую, минуя проверки.
func (r *memRepo) put(c *model.Capybara) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[c.ID] = clone(c)
}

func (r *memRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// blindRepo не видит дубликатов при поиске: имитирует гонку двух отправок.
type blindRepo struct {
	*memRepo
}

func (blindRepo) FindByFingerprint(context.Context, string) (*model.Capybara, error) {
	return nil, repository.ErrNotFound
}

// failingStore — хранилище, в которое нельзя записать.
type failingStore struct {
	*filestore.FileStore
}

func (failingStore) Save(string, io.Reader) (*filestore.SaveResult, error) {
	return nil, errors.New("диск переполнен")
}

// sent — зафиксированное уведомление.
type sent struct {
	channel, event string
	payload        any
	to, subject    string
	body           string
}

// recNotifier записывает рассылки и письма.
type recNotifier struct {
	mu         sync.Mutex
	emailOn    bool
	broadcasts []sent
	emails     []sent
}

func (n *recNotifier) Broadcast(_ context.Context, channel, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, sent{channel: channel, event: event, payload: payload})
	return nil
}

func (n *recNotifier) SendEmail(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, sent{to: to, subject: subject, body: body})
	return nil
}

func (n *recNotifier) EmailEnabled() bool { return n.emailOn }

func (n *recNotifier) snapshot() (broadcasts, emails []sent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.broadcasts...), append([]sent(nil), n.emails...)
}

// inlineQueue выполняет задачи сразу в вызывающей горутине.
type inlineQueue struct{}

func (inlineQueue) Enqueue(_ string, fn func(ctx context.Context) error) bool {
	_ = fn(context.Background())
	return true
}

// fixedNames всегда возвращает одно имя.
type fixedNames string

func (f fixedNames) Name() string { return string(f) }

// seqNames выдаёт имена по порядку, последнее повторяется.
type seqNames struct {
	mu    sync.Mutex
	names []string
	i     int
}

func (s *seqNames) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.names[min(s.i, len(s.names)-1)]
	s.i++
	return name
}

// seqIDs выдаёт предсказуемые id длиной 21 символ.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("capy%017d", g.n), nil
}

// noisePNG генерирует PNG со случайным шумом; разные seed дают разные отпечатки.
func noisePNG(t *testing.T, seed uint64) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed*31+7))
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(rng.IntN(256))})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newStore(t *testing.T) *filestore.FileStore {
	t.Helper()
	s, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	return s
}

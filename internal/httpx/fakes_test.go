package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wearagain/thriftmarket/internal/apperr"
	"github.com/wearagain/thriftmarket/internal/auth"
	"github.com/wearagain/thriftmarket/internal/catalog"
	"github.com/wearagain/thriftmarket/internal/orders"
	"github.com/wearagain/thriftmarket/internal/users"
	"github.com/wearagain/thriftmarket/internal/wishlist"
)

// In-memory stores mirroring the repo contracts, so handler tests cover
// the full HTTP surface without a database.

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]*users.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*users.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *users.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
	}
	u.CreatedAt = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
}

func (f *fakeUsers) List(_ context.Context) ([]users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []users.User{}
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id, role string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !users.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, role)
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type fakeItems struct {
	mu   sync.Mutex
	byID map[string]*catalog.Item
}

func newFakeItems() *fakeItems { return &fakeItems{byID: map[string]*catalog.Item{}} }

func (f *fakeItems) Create(_ context.Context, it *catalog.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.Status = catalog.StatusAvailable
	it.CreatedAt = time.Now()
	it.UpdatedAt = it.CreatedAt
	cp := *it
	f.byID[it.ID] = &cp
	return nil
}

func (f *fakeItems) Get(_ context.Context, id string) (*catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.byID[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: item", apperr.ErrNotFound)
}

func (f *fakeItems) List(_ context.Context, flt catalog.Filter) (*catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if flt.Status == "" {
		flt.Status = catalog.StatusAvailable
	}
	items := []catalog.Item{}
	for _, it := range f.byID {
		if it.Status == flt.Status {
			items = append(items, *it)
		}
	}
	return &catalog.Page{Items: items, Total: len(items), Page: 1, Limit: 10, Pages: 1}, nil
}

func (f *fakeItems) Update(_ context.Context, id, requesterID string, uf catalog.UpdateFields) (*catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: item", apperr.ErrNotFound)
	}
	if it.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: not the item owner", apperr.ErrForbidden)
	}
	it.Title = uf.Title
	it.Description = uf.Description
	it.PriceCents = uf.PriceCents
	it.Size = uf.Size
	it.Condition = uf.Condition
	it.Category = uf.Category
	it.PhotoURL = uf.PhotoURL
	if uf.Status != "" {
		it.Status = uf.Status
	}
	cp := *it
	return &cp, nil
}

func (f *fakeItems) Delete(_ context.Context, id, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("%w: item", apperr.ErrNotFound)
	}
	if it.OwnerID != requesterID {
		return fmt.Errorf("%w: not the item owner", apperr.ErrForbidden)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeItems) ListForOwner(_ context.Context, ownerID, status string) ([]catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []catalog.Item{}
	for _, it := range f.byID {
		if it.OwnerID == ownerID && (status == "" || it.Status == status) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeItems) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.byID[id]; ok {
		return it.Status
	}
	return ""
}

// fakeOrders keeps the placement contract of orders.Repo: validate every
// line before touching anything, so a failing line leaves no item
// reserved.
type fakeOrders struct {
	mu    sync.Mutex
	items *fakeItems
	byID  map[string]*orders.Order
}

func newFakeOrders(items *fakeItems) *fakeOrders {
	return &fakeOrders{items: items, byID: map[string]*orders.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, buyerID string, lines []orders.LineInput) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items.mu.Lock()
	defer f.items.mu.Unlock()

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", apperr.ErrValidation)
	}

	o := &orders.Order{ID: uuid.NewString(), BuyerID: buyerID, Status: orders.StatusPending}
	for _, l := range lines {
		if l.Qty < 1 {
			return nil, fmt.Errorf("%w: qty must be >= 1", apperr.ErrValidation)
		}
		it, ok := f.items.byID[l.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %s", apperr.ErrNotFound, l.ItemID)
		}
		if it.Status != catalog.StatusAvailable {
			return nil, fmt.Errorf("%w: item %q is not available", apperr.ErrConflict, it.Title)
		}
		if it.OwnerID == buyerID {
			return nil, fmt.Errorf("%w: cannot order your own item", apperr.ErrForbidden)
		}
		o.TotalCents += it.PriceCents * int64(l.Qty)
		o.Items = append(o.Items, orders.Line{ItemID: l.ItemID, Title: it.Title, Qty: l.Qty, PriceCents: it.PriceCents})
	}
	for _, l := range o.Items {
		f.items.byID[l.ItemID].Status = catalog.StatusReserved
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.byID[o.ID] = o
	return o, nil
}

func (f *fakeOrders) Get(_ context.Context, orderID, requesterID, requesterRole string) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
	}
	if o.BuyerID != requesterID && requesterRole != users.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order buyer", apperr.ErrForbidden)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID, requesterID, requesterRole string, next orders.Status) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order", apperr.ErrNotFound)
	}
	if o.BuyerID != requesterID && requesterRole != users.RoleAdmin {
		return nil, fmt.Errorf("%w: not the order buyer", apperr.ErrForbidden)
	}
	if !orders.CanTransition(o.Status, next) {
		return nil, fmt.Errorf("%w: cannot change order from %s to %s", apperr.ErrConflict, o.Status, next)
	}
	o.Status = next

	f.items.mu.Lock()
	defer f.items.mu.Unlock()
	for _, l := range o.Items {
		switch next {
		case orders.StatusCompleted:
			f.items.byID[l.ItemID].Status = catalog.StatusSold
		case orders.StatusCancelled:
			f.items.byID[l.ItemID].Status = catalog.StatusAvailable
		}
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListForBuyer(_ context.Context, buyerID string, status orders.Status) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []orders.Order{}
	for _, o := range f.byID {
		if o.BuyerID == buyerID && (status == "" || o.Status == status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) ListAll(_ context.Context, status orders.Status, page, limit int) ([]orders.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []orders.Order{}
	for _, o := range f.byID {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

type fakeWishlists struct {
	mu    sync.Mutex
	items *fakeItems
	byID  map[string]*wishlist.Wishlist
}

func newFakeWishlists(items *fakeItems) *fakeWishlists {
	return &fakeWishlists{items: items, byID: map[string]*wishlist.Wishlist{}}
}

func (f *fakeWishlists) Create(_ context.Context, w *wishlist.Wishlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.CreatedAt = time.Now()
	w.Items = []catalog.Item{}
	cp := *w
	f.byID[w.ID] = &cp
	return nil
}

func (f *fakeWishlists) ListForOwner(_ context.Context, ownerID string) ([]wishlist.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []wishlist.Wishlist{}
	for _, w := range f.byID {
		if w.OwnerID == ownerID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeWishlists) Get(_ context.Context, id, requesterID string) (*wishlist.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
	}
	if w.OwnerID != requesterID && !w.IsPublic {
		return nil, fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWishlists) Update(_ context.Context, id, requesterID string, name *string, isPublic *bool) (*wishlist.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
	}
	if w.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	if name != nil {
		w.Name = *name
	}
	if isPublic != nil {
		w.IsPublic = *isPublic
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWishlists) Delete(_ context.Context, id, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeWishlists) AddItem(_ context.Context, wishlistID, itemID, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[wishlistID]
	if !ok {
		return fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	it, err := f.items.Get(context.Background(), itemID)
	if err != nil {
		return err
	}
	for _, existing := range w.Items {
		if existing.ID == itemID {
			return fmt.Errorf("%w: item already in wishlist", apperr.ErrConflict)
		}
	}
	w.Items = append(w.Items, *it)
	return nil
}

func (f *fakeWishlists) RemoveItem(_ context.Context, wishlistID, itemID, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.byID[wishlistID]
	if !ok {
		return fmt.Errorf("%w: wishlist", apperr.ErrNotFound)
	}
	if w.OwnerID != requesterID {
		return fmt.Errorf("%w: not the wishlist owner", apperr.ErrForbidden)
	}
	for i, existing := range w.Items {
		if existing.ID == itemID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: item not in wishlist", apperr.ErrNotFound)
}

// testEnv wires every handler against the fakes behind a real router,
// middleware and token issuer.
type testEnv struct {
	router    *chi.Mux
	users     *fakeUsers
	items     *fakeItems
	orders    *fakeOrders
	wishlists *fakeWishlists
	tokens    *auth.TokenIssuer
	hasher    auth.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:  newFakeUsers(),
		tokens: &auth.TokenIssuer{Secret: []byte("test-secret"), TTL: time.Hour},
		hasher: auth.Hasher{Cost: 4}, // low cost keeps tests fast
	}
	env.items = newFakeItems()
	env.orders = newFakeOrders(env.items)
	env.wishlists = newFakeWishlists(env.items)

	mw := &AuthMiddleware{Tokens: env.tokens, Users: env.users}
	env.router = NewRouter("*")
	(&AuthHandler{Store: env.users, Tokens: env.tokens, Hasher: env.hasher, AdminCode: "sekrit"}).Register(env.router, mw)
	(&ItemsHandler{Store: env.items}).Register(env.router, mw)
	(&OrdersHandler{Store: env.orders}).Register(env.router, mw)
	(&WishlistsHandler{Store: env.wishlists}).Register(env.router, mw)
	(&UsersHandler{Store: env.users}).Register(env.router, mw)
	return env
}

// newUser registers a user directly against the store and returns a
// valid token for it.
func (e *testEnv) newUser(t *testing.T, email, role string) (*users.User, string) {
	t.Helper()
	hash, err := e.hasher.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &users.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, Name: "Test User", Role: role}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := e.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

func (e *testEnv) newItem(t *testing.T, ownerID string, priceCents int64) *catalog.Item {
	t.Helper()
	it := &catalog.Item{
		ID:          uuid.NewString(),
		Title:       "Denim Jacket",
		Description: "Lightly worn",
		PriceCents:  priceCents,
		Size:        "M",
		Condition:   "good",
		Category:    "jackets",
		PhotoURL:    "https://example.com/p.jpg",
		OwnerID:     ownerID,
	}
	if err := e.items.Create(context.Background(), it); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

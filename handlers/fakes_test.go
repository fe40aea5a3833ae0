package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/categories"
	"pharmacy-service/internal/orders"
	"pharmacy-service/internal/prescriptions"
	"pharmacy-service/internal/products"
	"pharmacy-service/internal/users"
)

// In-memory stand-ins for the SQL stores, just enough behavior for the
// routes under test.

type fakeUserStore struct {
	users map[string]users.User
}

func (f *fakeUserStore) InsertUser(ctx context.Context, nu users.NewUser) (users.User, error) {
	for _, u := range f.users {
		if u.Email == nu.Email {
			return users.User{}, users.ErrEmailTaken
		}
	}
	u := users.User{ID: "user-" + nu.Email, Name: nu.Name, Email: nu.Email, Role: "USER"}
	if f.users == nil {
		f.users = map[string]users.User{}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) AuthenticateUser(ctx context.Context, email, password string) (users.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, users.ErrInvalidCredentials
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id string) (users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) UpdateUserProfile(ctx context.Context, id string, up users.UpdateUser) (users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	if up.Name != "" {
		u.Name = up.Name
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeUserStore) ListUsers(ctx context.Context, limit, offset int) ([]users.User, int, error) {
	var out []users.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

type fakeProductStore struct {
	products map[string]products.Product
}

func (f *fakeProductStore) InsertProduct(ctx context.Context, np products.NewProduct) (products.Product, error) {
	p := products.Product{
		ID:                   "prod-" + np.Name,
		Name:                 np.Name,
		Description:          np.Description,
		Price:                np.Price,
		Inventory:            np.Inventory,
		RequiresPrescription: np.RequiresPrescription,
		CategoryID:           np.CategoryID,
	}
	if f.products == nil {
		f.products = map[string]products.Product{}
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeProductStore) GetProductByID(ctx context.Context, id string) (products.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductStore) UpdateProductInDB(ctx context.Context, id string, p products.Product) (products.Product, error) {
	if _, ok := f.products[id]; !ok {
		return products.Product{}, products.ErrNotFound
	}
	f.products[id] = p
	return p, nil
}

func (f *fakeProductStore) DeleteProductFromDB(ctx context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return products.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductStore) ListProductsFromDB(ctx context.Context, lf products.ListFilters) ([]products.Product, int, error) {
	var out []products.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

type fakeCategoryStore struct {
	categories map[string]categories.Category
}

func (f *fakeCategoryStore) InsertCategory(ctx context.Context, nc categories.NewCategory) (categories.Category, error) {
	c := categories.Category{ID: "cat-" + nc.Name, Name: nc.Name}
	if f.categories == nil {
		f.categories = map[string]categories.Category{}
	}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCategoryStore) GetCategoryByIDOrSlug(ctx context.Context, idOrSlug string) (categories.Category, error) {
	c, ok := f.categories[idOrSlug]
	if !ok {
		return categories.Category{}, categories.ErrNotFound
	}
	return c, nil
}

func (f *fakeCategoryStore) ListCategories(ctx context.Context) ([]categories.Category, error) {
	var out []categories.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategoryStore) UpdateCategory(ctx context.Context, id string, nc categories.NewCategory) (categories.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return categories.Category{}, categories.ErrNotFound
	}
	c.Name = nc.Name
	f.categories[id] = c
	return c, nil
}

func (f *fakeCategoryStore) DeleteCategory(ctx context.Context, id string) error {
	if _, ok := f.categories[id]; !ok {
		return categories.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

type fakeCartStore struct {
	cart    *cart.Cart
	addErr  error
	itemErr error
}

func (f *fakeCartStore) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	if f.cart == nil {
		f.cart = &cart.Cart{ID: "cart-1", UserID: userID}
	}
	return f.cart, nil
}

func (f *fakeCartStore) AddItem(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.GetCart(ctx, userID)
}

func (f *fakeCartStore) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*cart.Cart, error) {
	if f.itemErr != nil {
		return nil, f.itemErr
	}
	return f.GetCart(ctx, userID)
}

func (f *fakeCartStore) RemoveItem(ctx context.Context, userID, itemID string) error {
	return f.itemErr
}

type fakeAddressStore struct {
	addresses map[string]addresses.Address
	deleteErr error
}

func (f *fakeAddressStore) InsertAddress(ctx context.Context, userID string, na addresses.NewAddress) (addresses.Address, error) {
	a := addresses.Address{ID: "addr-" + na.FullName, UserID: userID, FullName: na.FullName, IsDefault: na.IsDefault || len(f.addresses) == 0}
	if f.addresses == nil {
		f.addresses = map[string]addresses.Address{}
	}
	f.addresses[a.ID] = a
	return a, nil
}

func (f *fakeAddressStore) ListAddresses(ctx context.Context, userID string) ([]addresses.Address, error) {
	var out []addresses.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAddressStore) GetAddressByID(ctx context.Context, userID, addressID string) (addresses.Address, error) {
	a, ok := f.addresses[addressID]
	if !ok || a.UserID != userID {
		return addresses.Address{}, addresses.ErrNotFound
	}
	return a, nil
}

func (f *fakeAddressStore) UpdateAddress(ctx context.Context, userID, addressID string, na addresses.NewAddress) (addresses.Address, error) {
	a, err := f.GetAddressByID(ctx, userID, addressID)
	if err != nil {
		return addresses.Address{}, err
	}
	a.FullName = na.FullName
	f.addresses[addressID] = a
	return a, nil
}

func (f *fakeAddressStore) DeleteAddress(ctx context.Context, userID, addressID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, err := f.GetAddressByID(ctx, userID, addressID); err != nil {
		return err
	}
	delete(f.addresses, addressID)
	return nil
}

type fakePrescriptionStore struct {
	prescriptions map[string]prescriptions.Prescription
}

func (f *fakePrescriptionStore) InsertPrescription(ctx context.Context, userID string, np prescriptions.NewPrescription) (prescriptions.Prescription, error) {
	p := prescriptions.Prescription{ID: "rx-1", UserID: userID, Image: np.Image, Status: prescriptions.StatusPending}
	if f.prescriptions == nil {
		f.prescriptions = map[string]prescriptions.Prescription{}
	}
	f.prescriptions[p.ID] = p
	return p, nil
}

func (f *fakePrescriptionStore) ListPrescriptions(ctx context.Context, lf prescriptions.ListFilters) ([]prescriptions.Prescription, int, error) {
	var out []prescriptions.Prescription
	for _, p := range f.prescriptions {
		if lf.UserID != "" && p.UserID != lf.UserID {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakePrescriptionStore) GetPrescriptionByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	p, ok := f.prescriptions[id]
	if !ok {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	return p, nil
}

func (f *fakePrescriptionStore) ReviewPrescription(ctx context.Context, id, status, notes string) (prescriptions.Prescription, error) {
	if status != prescriptions.StatusApproved && status != prescriptions.StatusRejected && status != prescriptions.StatusPending {
		return prescriptions.Prescription{}, prescriptions.ErrInvalidStatus
	}
	p, ok := f.prescriptions[id]
	if !ok {
		return prescriptions.Prescription{}, prescriptions.ErrNotFound
	}
	p.Status = status
	f.prescriptions[id] = p
	return p, nil
}

func (f *fakePrescriptionStore) DeletePrescription(ctx context.Context, id string) error {
	if _, ok := f.prescriptions[id]; !ok {
		return prescriptions.ErrNotFound
	}
	delete(f.prescriptions, id)
	return nil
}

// fakeOrderStore backs both PlaceOrder and the read endpoints.
type fakeOrderStore struct {
	address   *addresses.Address
	cart      *cart.Cart
	linked    []prescriptions.Prescription
	commitErr error
	orders    map[string]orders.Order
}

func (f *fakeOrderStore) AddressByIDAndOwner(ctx context.Context, addressID, userID string) (*addresses.Address, error) {
	if f.address == nil || f.address.ID != addressID || f.address.UserID != userID {
		return nil, orders.ErrAddressNotFound
	}
	return f.address, nil
}

func (f *fakeOrderStore) CartWithItems(ctx context.Context, userID string) (*cart.Cart, error) {
	return f.cart, nil
}

func (f *fakeOrderStore) PrescriptionsByIDsAndOwner(ctx context.Context, ids []string, userID string) ([]prescriptions.Prescription, error) {
	return f.linked, nil
}

func (f *fakeOrderStore) CommitOrder(ctx context.Context, o *orders.Order, cartID string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.orders == nil {
		f.orders = map[string]orders.Order{}
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderStore) ListOrders(ctx context.Context, lf orders.ListFilters) ([]orders.Order, int, error) {
	var out []orders.Order
	for _, o := range f.orders {
		if lf.UserID != "" && o.UserID != lf.UserID {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (f *fakeOrderStore) OrderByID(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOrderStore) UpdateOrder(ctx context.Context, orderID string, req orders.UpdateOrderRequest) (*orders.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if req.Status != "" {
		o.Status = orders.OrderStatus(req.Status)
	}
	if req.PaymentStatus != "" {
		o.PaymentStatus = orders.PaymentStatus(req.PaymentStatus)
	}
	if req.TrackingNumber != "" {
		o.TrackingNumber = req.TrackingNumber
	}
	f.orders[orderID] = o
	return &o, nil
}

func (f *fakeOrderStore) MarkOrderPaid(ctx context.Context, orderID, paymentRef string) (*orders.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.PaymentStatus = orders.PaymentPaid
	o.PaymentRef = paymentRef
	o.Status = orders.StatusProcessing
	f.orders[orderID] = o
	return &o, nil
}

type fakeProducer struct {
	messages []string
}

func (f *fakeProducer) ProduceMessage(topic string, key []byte, value []byte) error {
	f.messages = append(f.messages, topic)
	return nil
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

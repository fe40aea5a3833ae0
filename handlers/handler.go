package handlers

import (
	"fmt"
	"net/http"
	"os"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/categories"
	"pharmacy-service/internal/orders"
	"pharmacy-service/internal/prescriptions"
	"pharmacy-service/internal/products"
	"pharmacy-service/internal/users"
	"pharmacy-service/middleware"
	"pharmacy-service/pkg/ctxmanage"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Producer is the slice of the kafka client the handlers use.
type Producer interface {
	ProduceMessage(topic string, key []byte, value []byte) error
}

type Handler struct {
	u        users.Store
	p        products.Store
	cat      categories.Store
	crt      cart.Store
	addr     addresses.Store
	rx       prescriptions.Store
	o        orders.Store
	k        Producer
	a        *auth.Keys
	validate *validator.Validate
}

func NewHandler(u users.Store, p products.Store, cat categories.Store, crt cart.Store,
	addr addresses.Store, rx prescriptions.Store, o orders.Store, k Producer, a *auth.Keys) *Handler {
	return &Handler{
		u:        u,
		p:        p,
		cat:      cat,
		crt:      crt,
		addr:     addr,
		rx:       rx,
		o:        o,
		k:        k,
		a:        a,
		validate: validator.New(),
	}
}

func API(endpointPrefix string, a *auth.Keys, h *Handler) *gin.Engine {

	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m := middleware.NewMid(a)
	//apply middleware to all the endpoints using r.Use
	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/users/signup", h.Signup)
		v1.POST("/users/login", h.Login)

		v1.GET("/products/list", h.ListProducts)
		v1.GET("/products/view/:id", h.GetProduct)
		v1.GET("/categories", h.ListCategories)
		v1.GET("/categories/:idOrSlug", h.GetCategory)

		// payment provider calls this back, no session to check
		v1.POST("/orders/webhook", h.Webhook)

		v1.Use(m.Authentication())

		v1.GET("/users/me", h.GetProfile)
		v1.PUT("/users/me", h.UpdateProfile)
		v1.GET("/admin/users", m.Authorize(h.ListUsers, auth.RoleAdmin))

		v1.POST("/products/create", m.Authorize(h.CreateProduct, auth.RoleAdmin, auth.RolePharmacist))
		v1.PUT("/products/update/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin, auth.RolePharmacist))
		v1.DELETE("/products/delete/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin, auth.RolePharmacist))

		v1.POST("/categories", m.Authorize(h.CreateCategory, auth.RoleAdmin))
		v1.PUT("/categories/:idOrSlug", m.Authorize(h.UpdateCategory, auth.RoleAdmin))
		v1.DELETE("/categories/:idOrSlug", m.Authorize(h.DeleteCategory, auth.RoleAdmin))

		v1.GET("/cart", m.Authorize(h.GetCart, auth.RoleUser))
		v1.POST("/cart/add-item", m.Authorize(h.AddToCart, auth.RoleUser))
		v1.PUT("/cart/items/:itemId", m.Authorize(h.UpdateCartItem, auth.RoleUser))
		v1.DELETE("/cart/items/:itemId", m.Authorize(h.RemoveCartItem, auth.RoleUser))

		v1.GET("/addresses", m.Authorize(h.ListAddresses, auth.RoleUser))
		v1.POST("/addresses", m.Authorize(h.CreateAddress, auth.RoleUser))
		v1.GET("/addresses/:id", m.Authorize(h.GetAddress, auth.RoleUser))
		v1.PUT("/addresses/:id", m.Authorize(h.UpdateAddress, auth.RoleUser))
		v1.DELETE("/addresses/:id", m.Authorize(h.DeleteAddress, auth.RoleUser))

		v1.GET("/prescriptions", h.ListPrescriptions)
		v1.POST("/prescriptions", m.Authorize(h.UploadPrescription, auth.RoleUser))
		v1.GET("/prescriptions/:id", h.GetPrescription)
		v1.PUT("/prescriptions/:id", m.Authorize(h.ReviewPrescription, auth.RoleAdmin, auth.RolePharmacist))
		v1.DELETE("/prescriptions/:id", h.DeletePrescription)

		v1.POST("/orders/checkout", m.Authorize(h.Checkout, auth.RoleUser))
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.PUT("/orders/:id", m.Authorize(h.UpdateOrder, auth.RoleAdmin, auth.RolePharmacist))
	}

	return r
}

// claimsFromRequest pulls the verified claims stored by the authentication
// middleware.
func claimsFromRequest(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	return claims, ok
}

func healthCheck(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	fmt.Println("healthCheck handler ", traceId)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

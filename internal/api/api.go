package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront-cart-service/internal/apiclient"
	"storefront-cart-service/internal/cart"
	"storefront-cart-service/internal/checkout"
	"storefront-cart-service/internal/entity"
	"storefront-cart-service/internal/events"
	"storefront-cart-service/internal/pricing"
	"storefront-cart-service/internal/session"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

var errUnauthorized = errors.New("unauthorized")

// JwtCustomClaims are issued by the storefront API. The subject is the user id
// and doubles as the session id.
type JwtCustomClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type CartHandler struct {
	sessions  *session.Manager
	checkout  *checkout.Service
	publisher events.Publisher
	currency  string
}

func NewCartHandler(sessions *session.Manager, checkoutService *checkout.Service, publisher events.Publisher, currency string) *CartHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if currency == "" {
		currency = pricing.DefaultCurrency
	}
	return &CartHandler{
		sessions:  sessions,
		checkout:  checkoutService,
		publisher: publisher,
		currency:  currency,
	}
}

// Register mounts the routes on e. Everything but the health check needs a
// bearer token signed with secret.
func Register(e *echo.Echo, h *CartHandler, secret []byte) {
	e.GET("/cart/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "storefront-cart-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	g := e.Group("")
	g.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(401, map[string]string{"error": "invalid or missing token"})
		},
	}))

	g.GET("/cart", h.GetCart)
	g.POST("/cart/items", h.AddItem)
	g.PUT("/cart/items/:id", h.SetQuantity)
	g.DELETE("/cart/items/:id", h.RemoveItem)
	g.DELETE("/cart", h.ClearCart)
	g.POST("/cart/reorder", h.Reorder)
	g.POST("/pricing/quote", h.Quote)
	g.GET("/checkout/summary", h.CheckoutSummary)
	g.POST("/checkout", h.PlaceOrder)
	g.GET("/recently-viewed", h.RecentlyViewed)
	g.POST("/recently-viewed/:id", h.ViewProduct)
	g.DELETE("/recently-viewed", h.ClearRecentlyViewed)
}

type lineView struct {
	Product          entity.Product `json:"product"`
	Quantity         int            `json:"quantity"`
	Pricing          entity.Pricing `json:"pricing"`
	LineTotalDisplay string         `json:"line_total_display"`
}

type cartView struct {
	Items           []lineView      `json:"items"`
	ItemCount       int             `json:"item_count"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	SubtotalDisplay string          `json:"subtotal_display"`
}

func (h *CartHandler) view(store *cart.Store) cartView {
	items := store.Items()
	totals := store.Totals()
	out := cartView{
		Items:           make([]lineView, 0, len(items)),
		ItemCount:       totals.ItemCount,
		Subtotal:        totals.Subtotal,
		SubtotalDisplay: pricing.FormatAmount(h.currency, totals.Subtotal),
	}
	for _, item := range items {
		p := pricing.PriceFor(item.Product, item.Quantity)
		out.Items = append(out.Items, lineView{
			Product:          item.Product,
			Quantity:         item.Quantity,
			Pricing:          p,
			LineTotalDisplay: pricing.FormatAmount(h.currency, p.TotalPrice),
		})
	}
	return out
}

// session resolves the caller's session and waits for its cart to be restored.
func (h *CartHandler) session(c echo.Context) (*session.Session, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, errUnauthorized
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return nil, errors.Wrap(errUnauthorized, err.Error())
	}

	ctx := c.Request().Context()
	s, err := h.sessions.Get(ctx, subject, token.Raw)
	if err != nil {
		return nil, err
	}

	select {
	case <-s.Cart.Ready():
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *CartHandler) publishCart(ctx context.Context, s *session.Session) {
	err := h.publisher.Publish(ctx, events.Event{
		Type:      events.CartUpdated,
		SessionID: s.ID,
		Items:     s.Cart.Items(),
		Totals:    s.Cart.Totals(),
	})
	if err != nil {
		logger.Warn().Err(err).Msgf("Could not publish cart update for session %s", s.ID)
	}
}

// GetCart --> GET /cart
func (h *CartHandler) GetCart(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, h.view(s.Cart))
}

// AddItem --> POST /cart/items
func (h *CartHandler) AddItem(c echo.Context) error {
	body := struct {
		ProductID string `json:"product_id"`
		Quantity  *int   `json:"quantity"`
	}{}
	if err := c.Bind(&body); err != nil || body.ProductID == "" {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}
	quantity := 1
	if body.Quantity != nil {
		quantity = *body.Quantity
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	ctx := c.Request().Context()

	product, err := s.API.GetProduct(ctx, body.ProductID)
	if err != nil {
		return errorJSON(c, err)
	}
	if err := s.Cart.AddItem(*product, quantity); err != nil {
		return errorJSON(c, err)
	}

	h.publishCart(ctx, s)
	return c.JSON(200, h.view(s.Cart))
}

// SetQuantity --> PUT /cart/items/:id
func (h *CartHandler) SetQuantity(c echo.Context) error {
	body := struct {
		Quantity *int `json:"quantity"`
	}{}
	if err := c.Bind(&body); err != nil || body.Quantity == nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	if err := s.Cart.SetQuantity(c.Param("id"), *body.Quantity); err != nil {
		return errorJSON(c, err)
	}

	h.publishCart(c.Request().Context(), s)
	return c.JSON(200, h.view(s.Cart))
}

// RemoveItem --> DELETE /cart/items/:id
func (h *CartHandler) RemoveItem(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	s.Cart.RemoveItem(c.Param("id"))

	h.publishCart(c.Request().Context(), s)
	return c.JSON(200, h.view(s.Cart))
}

// ClearCart --> DELETE /cart
func (h *CartHandler) ClearCart(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	s.Cart.Clear()

	h.publishCart(c.Request().Context(), s)
	return c.JSON(200, h.view(s.Cart))
}

// Reorder adds the items of a past order at current prices --> POST /cart/reorder
func (h *CartHandler) Reorder(c echo.Context) error {
	body := struct {
		OrderID string `json:"order_id"`
	}{}
	if err := c.Bind(&body); err != nil || body.OrderID == "" {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	ctx := c.Request().Context()

	orders, err := s.API.ListOrders(ctx)
	if err != nil {
		return errorJSON(c, err)
	}
	var order *entity.Order
	for i := range orders {
		if orders[i].ID == body.OrderID {
			order = &orders[i]
			break
		}
	}
	if order == nil {
		return c.JSON(404, map[string]string{"error": "Order not found"})
	}

	skipped := 0
	lines := make([]entity.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		product, err := s.API.GetProduct(ctx, item.Product.ID)
		if err != nil {
			logger.Warn().Err(err).Msgf("Skipping product %s of order %s", item.Product.ID, order.ID)
			skipped++
			continue
		}
		lines = append(lines, entity.LineItem{Product: *product, Quantity: item.Quantity})
	}
	skipped += s.Cart.Merge(lines)

	h.publishCart(ctx, s)
	return c.JSON(200, map[string]interface{}{
		"skipped": skipped,
		"cart":    h.view(s.Cart),
	})
}

// Quote prices a product at a quantity without touching the cart --> POST /pricing/quote
func (h *CartHandler) Quote(c echo.Context) error {
	body := struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}{}
	if err := c.Bind(&body); err != nil || body.ProductID == "" {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	product, err := s.API.GetProduct(c.Request().Context(), body.ProductID)
	if err != nil {
		return errorJSON(c, err)
	}

	p := pricing.PriceFor(*product, body.Quantity)
	return c.JSON(200, map[string]interface{}{
		"pricing":            p,
		"ladder":             pricing.Ladder(*product),
		"unit_price_display": pricing.FormatAmount(h.currency, p.UnitPrice),
		"total_display":      pricing.FormatAmount(h.currency, p.TotalPrice),
	})
}

// CheckoutSummary --> GET /checkout/summary?payment_method=COD
func (h *CartHandler) CheckoutSummary(c echo.Context) error {
	method := entity.PaymentMethod(c.QueryParam("payment_method"))
	if method == "" {
		method = entity.PaymentCOD
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	summary, err := h.checkout.Summary(s.Cart, method)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, map[string]interface{}{
		"summary":       summary,
		"total_display": pricing.FormatAmount(h.currency, summary.Total),
	})
}

// PlaceOrder --> POST /checkout
// Without an address_id the default address is used.
func (h *CartHandler) PlaceOrder(c echo.Context) error {
	body := struct {
		AddressID     string               `json:"address_id"`
		PaymentMethod entity.PaymentMethod `json:"payment_method"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	ctx := c.Request().Context()

	address, err := h.address(ctx, s, body.AddressID)
	if err != nil {
		return errorJSON(c, err)
	}

	order, err := h.checkout.PlaceOrder(ctx, s.ID, s.Cart, s.API, address, body.PaymentMethod)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(201, order)
}

func (h *CartHandler) address(ctx context.Context, s *session.Session, id string) (*entity.Address, error) {
	if id == "" {
		return s.API.DefaultAddress(ctx)
	}
	addresses, err := s.API.ListAddresses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range addresses {
		if addresses[i].ID == id {
			return &addresses[i], nil
		}
	}
	return nil, nil
}

// RecentlyViewed --> GET /recently-viewed
func (h *CartHandler) RecentlyViewed(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, s.Recent.Items(c.Request().Context()))
}

// ViewProduct records a product view and returns related recently viewed
// products --> POST /recently-viewed/:id
func (h *CartHandler) ViewProduct(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	ctx := c.Request().Context()

	product, err := s.API.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	if err := s.Recent.Add(ctx, *product); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(200, map[string]interface{}{
		"product":         product,
		"recommendations": s.Recent.Recommendations(ctx, product.ID),
	})
}

// ClearRecentlyViewed --> DELETE /recently-viewed
func (h *CartHandler) ClearRecentlyViewed(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return errorJSON(c, err)
	}
	if err := s.Recent.Clear(c.Request().Context()); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(204)
}

func errorJSON(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= 500 {
		logger.Error().Err(err).Msgf("%s %s failed", c.Request().Method, c.Path())
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, session.ErrMissingSessionID):
		return http.StatusUnauthorized
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrStockExceeded),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, checkout.ErrMissingAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cart.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, apiclient.ErrInvalidProduct):
		return http.StatusBadGateway
	}
	if code := apiclient.StatusCode(err); code != 0 {
		return code
	}
	return http.StatusInternalServerError
}

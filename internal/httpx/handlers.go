package httpx

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auroramart/storefront/internal/cart"
	"github.com/auroramart/storefront/internal/checkout"
	"github.com/auroramart/storefront/internal/coupon"
	"github.com/auroramart/storefront/internal/currency"
	"github.com/auroramart/storefront/internal/database"
	"github.com/auroramart/storefront/internal/store"
)

// sessionHeader carries the cart session ID. A missing header gets a fresh
// session echoed back in the response.
const sessionHeader = "X-Session-ID"

type Handler struct {
	DB        *sql.DB
	Carts     *cart.Store
	Checkout  *checkout.Engine
	Converter *currency.Converter
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/products", h.createProduct)
	r.Get("/products", h.listProducts)
	r.Get("/products/{sku}", h.getProduct)

	r.Post("/customers", h.createCustomer)
	r.Get("/customers/{id}", h.getCustomer)
	r.Post("/categories", h.createCategory)
	r.Post("/coupons", h.createCoupon)

	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addCartItem)
	r.Put("/cart/items/{sku}", h.setCartItemQuantity)
	r.Delete("/cart/items/{sku}", h.removeCartItem)
	r.Delete("/cart", h.clearCart)

	r.Post("/checkout/preview", h.previewCheckout)
	r.Post("/checkout", h.submitCheckout)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/status", h.transitionOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeFailure maps domain errors to status codes. Coupon and validation
// errors go back verbatim; anything unrecognized is masked as a generic
// failure and logged.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	switch {
	case coupon.IsCouponError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCustomerNotFound),
		errors.Is(err, database.ErrCategoryNotFound),
		errors.Is(err, database.ErrCouponNotFound),
		errors.Is(err, database.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("httpx: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "order could not be completed")
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(sessionHeader, id)
	return id
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU             string  `json:"sku"`
		Name            string  `json:"name"`
		Description     string  `json:"description"`
		UnitPrice       string  `json:"unit_price"`
		Rating          float64 `json:"rating"`
		QuantityOnHand  int     `json:"quantity_on_hand"`
		ReorderQuantity int     `json:"reorder_quantity"`
		ImageURL        string  `json:"image_url"`
		CategoryID      string  `json:"category_id"`
		SubcategoryID   string  `json:"subcategory_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_price")
		return
	}

	product, err := store.CreateProduct(r.Context(), h.DB, store.CreateProductRequest{
		SKU:             req.SKU,
		Name:            req.Name,
		Description:     req.Description,
		UnitPrice:       price,
		Rating:          req.Rating,
		QuantityOnHand:  req.QuantityOnHand,
		ReorderQuantity: req.ReorderQuantity,
		ImageURL:        req.ImageURL,
		CategoryID:      req.CategoryID,
		SubcategoryID:   req.SubcategoryID,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	products, err := store.ListProducts(r.Context(), h.DB, r.URL.Query().Get("category_id"), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := store.GetProduct(r.Context(), h.DB, chi.URLParam(r, "sku"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username          string `json:"username"`
		Email             string `json:"email"`
		Age               int    `json:"age"`
		MonthlyIncomeSGD  string `json:"monthly_income_sgd"`
		PreferredCategory string `json:"preferred_category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	income := decimal.Zero
	if req.MonthlyIncomeSGD != "" {
		var err error
		if income, err = decimal.NewFromString(req.MonthlyIncomeSGD); err != nil {
			writeError(w, http.StatusBadRequest, "invalid monthly_income_sgd")
			return
		}
	}

	customer, err := store.CreateCustomer(r.Context(), h.DB, store.CreateCustomerRequest{
		Username:          req.Username,
		Email:             req.Email,
		Age:               req.Age,
		MonthlyIncomeSGD:  income,
		PreferredCategory: req.PreferredCategory,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := store.GetCustomer(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.ParentID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code               string   `json:"code"`
		DiscountPercentage string   `json:"discount_percentage"`
		MinOrderValue      string   `json:"min_order_value"`
		MaxDiscount        string   `json:"max_discount"`
		ValidFrom          string   `json:"valid_from"` // YYYY-MM-DD
		ValidUntil         string   `json:"valid_until"`
		UsageLimit         int      `json:"usage_limit"`
		CategoryIDs        []string `json:"category_ids"`
		CustomerIDs        []string `json:"customer_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pct, err := decimal.NewFromString(req.DiscountPercentage)
	if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		writeError(w, http.StatusBadRequest, "discount_percentage must be between 0 and 100")
		return
	}
	minOrder := decimal.Zero
	if req.MinOrderValue != "" {
		if minOrder, err = decimal.NewFromString(req.MinOrderValue); err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_order_value")
			return
		}
	}
	var maxDiscount decimal.Decimal
	hasMax := req.MaxDiscount != ""
	if hasMax {
		if maxDiscount, err = decimal.NewFromString(req.MaxDiscount); err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_discount")
			return
		}
	}
	validFrom, err := time.Parse("2006-01-02", req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid_from must be YYYY-MM-DD")
		return
	}
	validUntil, err := time.Parse("2006-01-02", req.ValidUntil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "valid_until must be YYYY-MM-DD")
		return
	}

	created, err := store.CreateCoupon(r.Context(), h.DB, store.CreateCouponRequest{
		Code:               req.Code,
		DiscountPercentage: pct,
		MinOrderValue:      minOrder,
		MaxDiscount:        maxDiscount,
		HasMaxDiscount:     hasMax,
		ValidFrom:          validFrom,
		ValidUntil:         validUntil,
		UsageLimit:         req.UsageLimit,
		CategoryIDs:        req.CategoryIDs,
		CustomerIDs:        req.CustomerIDs,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// cartView echoes cart contents with prices converted to the requested
// display currency. Stored prices stay base currency.
type cartView struct {
	SessionID string         `json:"session_id"`
	Currency  string         `json:"currency"`
	Lines     []cartLineView `json:"lines"`
	Subtotal  string         `json:"subtotal"`
}

type cartLineView struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

func (h *Handler) cartView(sessionID, code string, c *cart.Cart) cartView {
	if code == "" {
		code = currency.Base
	}
	view := cartView{
		SessionID: sessionID,
		Currency:  code,
		Lines:     []cartLineView{},
		Subtotal:  h.Converter.ToDisplay(c.Subtotal(), code).StringFixed(2),
	}
	for _, line := range c.Items() {
		view.Lines = append(view.Lines, cartLineView{
			SKU:       line.SKU,
			Name:      line.Name,
			ImageURL:  line.ImageURL,
			Quantity:  line.Quantity,
			UnitPrice: h.Converter.ToDisplay(line.UnitPrice, code).StringFixed(2),
			LineTotal: h.Converter.ToDisplay(line.LineTotal(), code).StringFixed(2),
		})
	}
	return view
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	c, err := h.Carts.Load(r.Context(), sid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(sid, r.URL.Query().Get("currency"), c))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	var req struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, req.SKU)
	if err != nil {
		writeFailure(w, err)
		return
	}

	c, err := h.Carts.Load(r.Context(), sid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := c.Add(product.SKU, req.Quantity, product.UnitPrice, product.Name, product.ImageURL); err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.Carts.Save(r.Context(), sid, c); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(sid, r.URL.Query().Get("currency"), c))
}

func (h *Handler) setCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Carts.Load(r.Context(), sid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	c.SetQuantity(chi.URLParam(r, "sku"), req.Quantity)
	if err := h.Carts.Save(r.Context(), sid, c); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(sid, r.URL.Query().Get("currency"), c))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	c, err := h.Carts.Load(r.Context(), sid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	c.Remove(chi.URLParam(r, "sku"))
	if err := h.Carts.Save(r.Context(), sid, c); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartView(sid, r.URL.Query().Get("currency"), c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	if err := h.Carts.Delete(r.Context(), sid); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) previewCheckout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	var req struct {
		CustomerID string `json:"customer_id"`
		CouponCode string `json:"coupon_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	totals, err := h.Checkout.Preview(r.Context(), sid, req.CustomerID, req.CouponCode)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	var req struct {
		CustomerID      string `json:"customer_id"`
		Email           string `json:"email"`
		ShippingAddress string `json:"shipping_address"`
		Notes           string `json:"notes"`
		CouponCode      string `json:"coupon_code"`
		PaymentMethod   string `json:"payment_method"`
		CardNumber      string `json:"card_number"`
		CardExpiry      string `json:"card_expiry"`
		CardCVV         string `json:"card_cvv"`
		DisplayCurrency string `json:"display_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Checkout.Submit(r.Context(), checkout.Request{
		SessionID:       sid,
		CustomerID:      req.CustomerID,
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
		CardNumber:      req.CardNumber,
		CardExpiry:      req.CardExpiry,
		CardCVV:         req.CardCVV,
		DisplayCurrency: req.DisplayCurrency,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":       result.Order,
		"reward_code": result.Reward.Code,
		"totals":      result.Display,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(r.Context(), h.DB, customerID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := store.GetOrder(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.Checkout.TransitionStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

package handler

import (
	"strconv"
	"time"

	"sigef-backend/internal/middleware"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	service service.InventoryService
}

func NewInventoryHandler(s service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: s}
}

// POST /api/v1/products
func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	product, err := h.service.CreateProduct(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

// PUT /api/v1/products/:id
func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": product})
}

// DELETE /api/v1/products/:id removes the product together with its sales.
func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id"), middleware.ActorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// POST /api/v1/sales records a sale, or a loss when is_loss is set.
func (h *InventoryHandler) RecordSale(c *fiber.Ctx) error {
	var req service.RecordSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	sale, err := h.service.RecordSale(c.UserContext(), &req, middleware.ActorFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Sale recorded", "data": sale})
}

// DELETE /api/v1/sales/:id reverses the sale and returns its units to stock.
func (h *InventoryHandler) DeleteSale(c *fiber.Ctx) error {
	if err := h.service.DeleteSale(c.UserContext(), c.Params("id"), middleware.ActorFrom(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Sale deleted"})
}

func (h *InventoryHandler) GetSale(c *fiber.Ctx) error {
	sale, err := h.service.GetSale(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sale)
}

// GetSales lists sales.
// Query params: product_id, is_loss (true|false), from, to (YYYY-MM-DD or RFC3339), order (desc by default, or asc)
func (h *InventoryHandler) GetSales(c *fiber.Ctx) error {
	filter := repository.SaleFilter{
		ProductID:   c.Query("product_id"),
		NewestFirst: c.Query("order", "desc") != "asc",
	}

	if raw := c.Query("is_loss"); raw != "" {
		isLoss, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "is_loss must be true or false", "code": "bad_request"})
		}
		filter.IsLoss = &isLoss
	}

	var err error
	if filter.From, err = queryTime(c, "from", false); err != nil {
		return err
	}
	if filter.To, err = queryTime(c, "to", true); err != nil {
		return err
	}

	sales, err := h.service.ListSales(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(sales)
}

// queryTime parses a date filter. A bare date used as an upper bound covers the whole day.
func queryTime(c *fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, name+" must be YYYY-MM-DD or RFC3339")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON", "code": "bad_request"})
}

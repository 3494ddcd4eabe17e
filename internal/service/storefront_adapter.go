package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GTDGit/gtd_bundle/internal/models"
	"github.com/GTDGit/gtd_bundle/internal/utils"
	"github.com/GTDGit/gtd_bundle/pkg/storefront"
)

// StorefrontCatalog wraps the storefront client to implement catalog.Fetcher.
type StorefrontCatalog struct {
	client   *storefront.Client
	healthy  bool
	healthMu sync.RWMutex
}

// NewStorefrontCatalog creates a new StorefrontCatalog.
func NewStorefrontCatalog(client *storefront.Client) *StorefrontCatalog {
	return &StorefrontCatalog{client: client, healthy: true}
}

// FetchProduct loads and converts a product. Every failure is a
// *utils.FetchError.
func (c *StorefrontCatalog) FetchProduct(ctx context.Context, handle string) (*models.Product, error) {
	p, err := c.client.FetchProduct(ctx, handle)
	if err != nil {
		var apiErr *storefront.APIError
		// A 4xx means the handle is wrong, not that the storefront is down.
		if !errors.As(err, &apiErr) || apiErr.Status >= 500 {
			c.setHealthy(false)
		}
		return nil, &utils.FetchError{Handle: handle, Err: err}
	}
	c.setHealthy(true)
	return convertProduct(p), nil
}

// Healthy reports whether the last fetch reached the storefront.
func (c *StorefrontCatalog) Healthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.healthy
}

func (c *StorefrontCatalog) setHealthy(ok bool) {
	c.healthMu.Lock()
	c.healthy = ok
	c.healthMu.Unlock()
}

func convertProduct(p *storefront.Product) *models.Product {
	out := &models.Product{
		ID:       p.ID,
		Handle:   p.Handle,
		Title:    p.Title,
		Options:  make([]models.Option, len(p.Options)),
		Variants: make([]models.Variant, len(p.Variants)),
	}
	for i, o := range p.Options {
		out.Options[i] = models.Option{Name: o.Name, Values: append([]string(nil), o.Values...)}
	}
	for i, v := range p.Variants {
		out.Variants[i] = models.Variant{
			ID:             v.ID,
			Title:          v.Title,
			Options:        append([]string(nil), v.Options...),
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
			Available:      v.Available,
			FeaturedImage:  v.FeaturedImage,
		}
	}
	return out
}

// StorefrontCart binds the storefront client to one shopper's cart and
// implements bundle.CartCollaborator. It is used by one checkout at a time.
type StorefrontCart struct {
	client *storefront.Client
	token  string
}

// NewStorefrontCart creates a cart collaborator for the cart identified by
// token. An empty token lets the storefront create a new cart.
func NewStorefrontCart(client *storefront.Client, token string) *StorefrontCart {
	return &StorefrontCart{client: client, token: token}
}

// Token returns the cart token, updated by every call that reports one.
func (c *StorefrontCart) Token() string {
	return c.token
}

func (c *StorefrontCart) remember(token string) {
	if token != "" {
		c.token = token
	}
}

// AddCartLines adds all lines in one batch and returns the refreshed cart.
func (c *StorefrontCart) AddCartLines(ctx context.Context, lines []models.CartLine) (*models.CartSnapshot, error) {
	items := make([]storefront.LineItem, len(lines))
	for i, l := range lines {
		items[i] = storefront.LineItem{ID: l.VariantID, Quantity: l.Quantity, Properties: l.Properties}
	}
	resp, err := c.client.AddItems(ctx, c.token, items)
	if err != nil {
		return nil, toCartError(err)
	}
	c.remember(resp.Token)

	cart, err := c.client.GetCart(ctx, c.token)
	if err != nil {
		// The add went through; report what the add response carried.
		snap := &models.CartSnapshot{Token: c.token, RetrievedAt: time.Now()}
		for _, it := range resp.Items {
			snap.Items = append(snap.Items, convertCartItem(it))
			snap.ItemCount += it.Quantity
		}
		return snap, nil
	}
	c.remember(cart.Token)
	return convertCart(cart), nil
}

// ApplyDiscount enters code on the cart. A code the cart reports as not
// applicable is a *utils.DiscountError.
func (c *StorefrontCart) ApplyDiscount(ctx context.Context, code string) (*models.CartSnapshot, error) {
	cart, err := c.client.ApplyDiscount(ctx, c.token, code)
	if err != nil {
		return nil, &utils.DiscountError{Code: code, Err: err}
	}
	c.remember(cart.Token)

	applied := false
	for _, dc := range cart.DiscountCodes {
		if strings.EqualFold(dc.Code, code) && dc.Applicable {
			applied = true
		}
	}
	if !applied {
		return nil, &utils.DiscountError{Code: code, Err: errors.New("code not applicable to cart")}
	}
	return convertCart(cart), nil
}

// UpdateLineProperties rewrites one line's properties.
func (c *StorefrontCart) UpdateLineProperties(ctx context.Context, key string, quantity int, properties map[string]string) error {
	cart, err := c.client.ChangeLine(ctx, c.token, storefront.ChangeRequest{
		ID:         key,
		Quantity:   quantity,
		Properties: properties,
	})
	if err != nil {
		return toCartError(err)
	}
	c.remember(cart.Token)
	return nil
}

// GetCart returns the current cart.
func (c *StorefrontCart) GetCart(ctx context.Context) (*models.CartSnapshot, error) {
	cart, err := c.client.GetCart(ctx, c.token)
	if err != nil {
		return nil, toCartError(err)
	}
	c.remember(cart.Token)
	return convertCart(cart), nil
}

func toCartError(err error) error {
	var apiErr *storefront.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Description != "" {
			msg = apiErr.Description
		}
		return &utils.CartError{Status: apiErr.Status, Message: msg, Err: err}
	}
	return &utils.CartError{Err: err}
}

func convertCart(c *storefront.Cart) *models.CartSnapshot {
	snap := &models.CartSnapshot{
		Token:         c.Token,
		ItemCount:     c.ItemCount,
		TotalPrice:    c.TotalPrice,
		OriginalTotal: c.OriginalTotalPrice,
		TotalDiscount: c.TotalDiscount,
		Currency:      c.Currency,
		Items:         make([]models.CartItem, 0, len(c.Items)),
		RetrievedAt:   time.Now(),
	}
	for _, dc := range c.DiscountCodes {
		if dc.Applicable {
			snap.DiscountCodes = append(snap.DiscountCodes, dc.Code)
		}
	}
	for _, it := range c.Items {
		snap.Items = append(snap.Items, convertCartItem(it))
	}
	return snap
}

func convertCartItem(it storefront.CartItem) models.CartItem {
	item := models.CartItem{
		Key:       it.Key,
		VariantID: it.VariantID,
		Quantity:  it.Quantity,
		Title:     it.Title,
		Price:     it.Price,
		LinePrice: it.LinePrice,
	}
	if len(it.Properties) > 0 {
		item.Properties = make(map[string]string, len(it.Properties))
		for k, v := range it.Properties {
			if v == nil {
				continue
			}
			item.Properties[k] = fmt.Sprint(v)
		}
	}
	return item
}

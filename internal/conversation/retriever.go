package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/internal/observability/metrics"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

// Data source labels reported in debug info.
const (
	SourceReferralFAQ = "Referral_FAQ_PDF"
	SourceProductDB   = "Product_DB"
	SourceNone        = "none"
)

const (
	productContextHeader   = "Available products related to your query:"
	NoProductsFoundContext = "No specific products found matching your query in the database."
	referralContextHeader  = "Context from Referral FAQ Document:\n"

	// ReferralFallbackContext stands in for the FAQ document when it cannot be read.
	ReferralFallbackContext = "I found our general referral information, but I'm having a little trouble accessing the detailed FAQ document right now. " +
		"Generally, Carton Caps offers a referral program where you can earn rewards for your school by inviting friends. " +
		"You can usually find your unique referral link in the app's 'Refer a Friend' section."
)

// ProductSearcher finds products by keyword.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, keyword string, limit int) ([]datastore.Product, error)
}

// DocumentLoader returns the normalized text of the referral FAQ.
type DocumentLoader interface {
	Load(ctx context.Context) (string, error)
}

// Retrieval is the context gathered for one message. Products is empty unless
// a product query returned rows.
type Retrieval struct {
	Intent     Intent
	Keyword    string
	SearchTerm string
	Context    string
	Sources    []string
	Products   []datastore.Product
}

// ContextRetriever fetches grounding text for a classified message. Failures
// are logged and replaced with fixed fallback text; Retrieve never errors.
type ContextRetriever struct {
	products ProductSearcher
	referral DocumentLoader
	limit    int
	logger   *logging.Logger
	metrics  *metrics.ChatMetrics
}

func NewContextRetriever(products ProductSearcher, referral DocumentLoader, limit int, logger *logging.Logger, m *metrics.ChatMetrics) *ContextRetriever {
	if logger == nil {
		logger = logging.Default()
	}
	if limit <= 0 {
		limit = 5
	}
	return &ContextRetriever{
		products: products,
		referral: referral,
		limit:    limit,
		logger:   logger,
		metrics:  m,
	}
}

func (r *ContextRetriever) Retrieve(ctx context.Context, cls Classification, message string) Retrieval {
	out := Retrieval{Intent: cls.Intent, Keyword: cls.Keyword}
	switch cls.Intent {
	case IntentReferralQuestion:
		out.Sources = []string{SourceReferralFAQ}
		out.Context = r.referralContext(ctx)
	case IntentProductQuery:
		out.Sources = []string{SourceProductDB}
		out.SearchTerm = ProductSearchTerm(message)
		out.Products = r.searchProducts(ctx, out.SearchTerm)
		out.Context = FormatProductContext(out.Products)
	}
	return out
}

func (r *ContextRetriever) referralContext(ctx context.Context) string {
	if r.referral == nil {
		r.logger.Warn("referral document not configured, using fallback context")
		r.metrics.ObserveDataFailure("referral_document")
		return ReferralFallbackContext
	}
	text, err := r.referral.Load(ctx)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("referral document has no text")
	}
	if err != nil {
		r.logger.Warn("referral document unavailable, using fallback context", "error", err)
		r.metrics.ObserveDataFailure("referral_document")
		return ReferralFallbackContext
	}
	return referralContextHeader + text
}

func (r *ContextRetriever) searchProducts(ctx context.Context, term string) []datastore.Product {
	if r.products == nil {
		return nil
	}
	r.logger.Debug("product query detected", "search_term", term)
	products, err := r.products.SearchProducts(ctx, term, r.limit)
	if err != nil {
		r.logger.Warn("product search failed", "search_term", term, "error", err)
		r.metrics.ObserveDataFailure("search_products")
		return nil
	}
	return products
}

// FormatProductContext renders product rows as a bullet list, or the fixed
// "no products" sentence when rows is empty.
func FormatProductContext(rows []datastore.Product) string {
	if len(rows) == 0 {
		return NoProductsFoundContext
	}
	var b strings.Builder
	b.WriteString(productContextHeader)
	for _, p := range rows {
		fmt.Fprintf(&b, "\n- Name: %s, Price: $%.2f, Description: %s", p.Name, p.Price, p.Description)
	}
	return b.String()
}

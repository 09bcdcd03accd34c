package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"premium-bot/internal/models"
	"premium-bot/internal/repository"
)

// LinkLedger holds the payment links the operator registered in advance.
type LinkLedger interface {
	FindByURL(ctx context.Context, url string) (*models.PaymentLink, error)
}

// LinkGateway accepts a payment link as proof. Links are checked for shape,
// merchant domain and presence in the ledger before an operator sees them.
type LinkGateway struct {
	payURL   string
	domains  []string
	ledger   LinkLedger
	validate *validator.Validate
}

func NewLinkGateway(payURL string, extraDomains []string, ledger LinkLedger) (*LinkGateway, error) {
	u, err := url.Parse(payURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid payment link url %q", payURL)
	}
	domains := []string{normalizeHost(u.Hostname())}
	for _, d := range extraDomains {
		if d = normalizeHost(d); d != "" {
			domains = append(domains, d)
		}
	}
	return &LinkGateway{
		payURL:   payURL,
		domains:  domains,
		ledger:   ledger,
		validate: validator.New(),
	}, nil
}

func (g *LinkGateway) Name() string   { return "paypal" }
func (g *LinkGateway) Kind() Kind     { return KindManual }
func (g *LinkGateway) PayURL() string { return g.payURL }

func (g *LinkGateway) Initiate(ctx context.Context, req InitiateRequest) (Outcome, error) {
	if req.Proof == nil || req.Proof.Kind != models.ProofLink {
		return Outcome{}, validationError("a payment link is required")
	}
	link, err := g.CheckLink(ctx, req.Proof.Value)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Kind:  OutcomeManualReview,
		Proof: &Proof{Kind: models.ProofLink, Value: link},
	}, nil
}

// CheckLink validates a submitted link and returns it normalized.
func (g *LinkGateway) CheckLink(ctx context.Context, raw string) (string, error) {
	link := strings.TrimSpace(raw)
	if err := g.validate.Var(link, "required,url"); err != nil {
		return "", validationError("malformed link")
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", validationError("malformed link")
	}
	if !g.merchantHost(u.Hostname()) {
		return "", validationError("link host %q is not an accepted merchant", u.Hostname())
	}

	if _, err := g.ledger.FindByURL(ctx, link); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", validationError("unknown payment link")
		}
		return "", fmt.Errorf("lookup payment link: %w", err)
	}
	return link, nil
}

func (g *LinkGateway) merchantHost(host string) bool {
	host = normalizeHost(host)
	for _, d := range g.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
}

// ScreenshotGateway forwards an image of a receipt to the operator.
type ScreenshotGateway struct{}

func NewScreenshotGateway() *ScreenshotGateway {
	return &ScreenshotGateway{}
}

func (g *ScreenshotGateway) Name() string { return "screenshot" }
func (g *ScreenshotGateway) Kind() Kind   { return KindManual }

func (g *ScreenshotGateway) Initiate(_ context.Context, req InitiateRequest) (Outcome, error) {
	if req.Proof == nil || req.Proof.Kind != models.ProofImage || strings.TrimSpace(req.Proof.Value) == "" {
		return Outcome{}, validationError("a screenshot is required")
	}
	return Outcome{
		Kind:  OutcomeManualReview,
		Proof: &Proof{Kind: models.ProofImage, Value: req.Proof.Value},
	}, nil
}

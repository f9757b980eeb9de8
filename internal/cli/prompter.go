package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tothsteve/itc-admin/internal/model"
)

// FolderResolver resolves the archive folder for an invoice type, so an
// overridden classification gets a consistent folder path.
type FolderResolver func(model.InvoiceType) string

// Prompter implements service.Prompter over a line-oriented terminal.
type Prompter struct {
	in            *bufio.Reader
	out           io.Writer
	resolveFolder FolderResolver
}

// NewPrompter creates a prompter reading from in and writing to out.
func NewPrompter(in io.Reader, out io.Writer, resolveFolder FolderResolver) *Prompter {
	return &Prompter{
		in:            bufio.NewReader(in),
		out:           out,
		resolveFolder: resolveFolder,
	}
}

// ReviewClassification shows a low-confidence classification and asks the
// user to accept, reject, or override the invoice type. A nil result means
// the user rejected the match.
func (p *Prompter) ReviewClassification(ctx context.Context, msg *model.EmailMessage, c *model.Classification) (*model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintln(p.out, TitleStyle.Render("Low-confidence classification"))
	fmt.Fprintf(p.out, "  From:       %s\n", msg.Sender)
	fmt.Fprintf(p.out, "  Subject:    %s\n", msg.Subject)
	fmt.Fprintf(p.out, "  Partner:    %s\n", c.PartnerName)
	fmt.Fprintf(p.out, "  Type:       %s (%s)\n", c.InvoiceType, c.PaymentType)
	fmt.Fprintf(p.out, "  Confidence: %s\n", WarningStyle.Render(fmt.Sprintf("%.2f", c.Confidence)))
	if len(c.MatchedPatterns) > 0 {
		fmt.Fprintf(p.out, "  Matched:    %s\n", SubtleStyle.Render(strings.Join(c.MatchedPatterns, ", ")))
	}

	fmt.Fprint(p.out, "\nAccept? [y]es / [n]o / [p]ersonal / [c]orporate: ")
	answer, err := p.in.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "":
		fmt.Fprintln(p.out, SuccessStyle.Render("Accepted"))
		return c, nil
	case "p", "personal":
		c.Override(model.InvoiceTypePersonal, p.resolveFolder(model.InvoiceTypePersonal))
		fmt.Fprintln(p.out, SuccessStyle.Render("Accepted as personal expense"))
		return c, nil
	case "c", "corporate":
		c.Override(model.InvoiceTypeCorporate, p.resolveFolder(model.InvoiceTypeCorporate))
		fmt.Fprintln(p.out, SuccessStyle.Render("Accepted as corporate expense"))
		return c, nil
	default:
		fmt.Fprintln(p.out, ErrorStyle.Render("Rejected"))
		return nil, nil
	}
}

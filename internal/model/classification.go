package model

// Classification is the engine's decision binding a message to a partner,
// confidence, and output routing. It is constructed fresh per message and
// never mutated afterwards except through Override.
type Classification struct {
	PartnerName     string
	InvoiceType     InvoiceType
	PaymentType     string
	FolderPath      string
	Confidence      float64
	MatchedPatterns []string
}

// Override replaces the invoice type after the fact (interactive
// correction). The payment-type label and folder path must change together
// with the type; the caller supplies the re-resolved folder path.
func (c *Classification) Override(invoiceType InvoiceType, folderPath string) {
	c.InvoiceType = invoiceType
	c.PaymentType = invoiceType.PaymentType()
	c.FolderPath = folderPath
}

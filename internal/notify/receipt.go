package notify

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// RenderReceipt builds a one-page PDF receipt with a QR code of the booking reference.
func RenderReceipt(b *model.Booking) ([]byte, error) {
	qrPayload := fmt.Sprintf("booking:%s|%s %s", b.ID, b.Date, b.Slot)
	qrPNG, err := qrcode.Encode(qrPayload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("receipt qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Consultation receipt")
	pdf.Ln(12)

	// gofpdf core fonts are cp1252; names with accents go through the translator.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		fmt.Sprintf("Booking: %s", b.ID),
		fmt.Sprintf("Client: %s", b.ClientName),
		fmt.Sprintf("Date: %s at %s", b.Date, b.Slot),
		fmt.Sprintf("Session: %s", durationLabel(b.Duration)),
		fmt.Sprintf("Amount: %s %s", calendar.FormatCents(b.PriceCents), b.Currency),
		fmt.Sprintf("Payment: %s", railLabel(b.Rail)),
	}
	for _, line := range lines {
		pdf.Cell(0, 10, tr(line))
		pdf.Ln(8)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 30, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func durationLabel(d calendar.DurationSelector) string {
	switch d {
	case calendar.DurationPlusHalf:
		return "standard + 30 min"
	case calendar.DurationPlusFull:
		return "standard + 60 min"
	default:
		return "standard"
	}
}

func railLabel(r calendar.Rail) string {
	if r == calendar.RailBankTransfer {
		return "bank transfer"
	}
	return "online"
}

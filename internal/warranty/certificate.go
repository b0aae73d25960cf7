package warranty

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
	"github.com/facelessdevhack/plati-rail-admin/report"
)

// Renderer converts HTML into PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html []byte, page report.Page) ([]byte, error)
}

// certificatePage is A5 landscape.
var certificatePage = report.Page{Width: 8.27, Height: 5.83, Landscape: true}

var certificateTemplate = template.Must(template.New("certificate").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Warranty {{.Reg.RegistrationCode}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;margin:32px;color:#1f2933}
h1{font-size:22px;margin:0 0 4px}
.code{color:#52606d;margin-bottom:24px}
table{border-collapse:collapse;width:100%}
td{padding:6px 0;border-bottom:1px solid #e4e7eb}
td:first-child{color:#52606d;width:40%}
footer{margin-top:24px;font-size:11px;color:#7b8794}
</style></head>
<body>
<h1>Plati Wheels Warranty Certificate</h1>
<div class="code">Registration {{.Reg.RegistrationCode}}</div>
<table>
<tr><td>Customer</td><td>{{.Reg.CustomerName}}</td></tr>
<tr><td>Mobile</td><td>{{.Reg.Mobile}}{{if .Verified}} (verified){{end}}</td></tr>
{{with .Reg.Email}}<tr><td>Email</td><td>{{.}}</td></tr>{{end}}
<tr><td>Product</td><td>{{.Reg.ProductName}}</td></tr>
<tr><td>Dealer</td><td>{{.Reg.DealerName}}</td></tr>
{{with .Purchased}}<tr><td>Purchase date</td><td>{{.}}</td></tr>{{end}}
<tr><td>Status</td><td>{{.Reg.Status}}</td></tr>
</table>
<footer>Issued {{.Issued}}</footer>
</body></html>`))

// Certificates renders warranty certificates.
type Certificates struct {
	renderer Renderer
}

// NewCertificates constructs Certificates.
func NewCertificates(renderer Renderer) *Certificates {
	return &Certificates{renderer: renderer}
}

// HTML renders the certificate document.
func (c *Certificates) HTML(reg models.WarrantyRegistration, issued time.Time) ([]byte, error) {
	data := struct {
		Reg       models.WarrantyRegistration
		Verified  bool
		Purchased string
		Issued    string
	}{
		Reg:      reg,
		Verified: reg.OTPStatus == models.OTPVerified,
		Issued:   issued.Format("02-01-2006"),
	}
	if !reg.PurchaseDate.IsZero() {
		data.Purchased = reg.PurchaseDate.Format("02-01-2006")
	}
	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("warranty: certificate template: %w", err)
	}
	return buf.Bytes(), nil
}

// Render produces the certificate PDF.
func (c *Certificates) Render(ctx context.Context, reg models.WarrantyRegistration, issued time.Time) ([]byte, error) {
	html, err := c.HTML(reg, issued)
	if err != nil {
		return nil, err
	}
	pdf, err := c.renderer.RenderHTML(ctx, html, certificatePage)
	if err != nil {
		return nil, fmt.Errorf("warranty: render certificate: %w", err)
	}
	return pdf, nil
}

// CertificateFilename names the certificate download.
func CertificateFilename(reg models.WarrantyRegistration) string {
	code := strings.TrimSpace(reg.RegistrationCode)
	if code == "" {
		code = fmt.Sprintf("%d", reg.ID)
	}
	return "Warranty " + code + ".pdf"
}

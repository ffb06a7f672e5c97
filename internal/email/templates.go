package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const baseStyle = `
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #212529;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #ffc800;
            color: #212529 !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            font-weight: bold;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
`

var verificationTmpl = template.Must(template.New("verification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>` + baseStyle + `</style>
</head>
<body>
    <div class="header">
        <h1>Welcome!</h1>
    </div>
    <div class="content">
        <h2>Verify your email address</h2>
        <p>Thank you for signing up! Please click the button below to verify your email address and activate your account.</p>

        <a href="{{.Link}}" class="button">Verify Email Address</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all;">{{.Link}}</p>

        <p style="margin-top: 30px;">If you didn't create an account, you can safely ignore this email.</p>
    </div>
    <div class="footer">
        <p>This link will expire in 24 hours.</p>
    </div>
</body>
</html>
`))

var passwordResetTmpl = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>` + baseStyle + `</style>
</head>
<body>
    <div class="header">
        <h1>Password Reset Request</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>You requested to reset your password. Click the button below to create a new password.</p>

        <a href="{{.Link}}" class="button">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all;">{{.Link}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>This link will expire in 1 hour.</p>
    </div>
</body>
</html>
`))

var orderConfirmationTmpl = template.Must(template.New("orderConfirmation").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>` + baseStyle + `
        .order-summary { background: #fff; padding: 20px; border-left: 4px solid #ffc800; margin: 20px 0; border-radius: 5px; }
        .summary-row { display: flex; justify-content: space-between; padding: 8px 0; }
        .item { display: flex; justify-content: space-between; padding: 10px; border-bottom: 1px solid #e0e0e0; }
        .item-price { text-align: right; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Invoice Confirmation</h1>
        <p>Order #{{.OrderNumber}}</p>
    </div>
    <div class="content">
        <p>Dear <strong>{{.CustomerName}}</strong>,</p>

        <p>Thank you for your order! We're thrilled to serve you.</p>

        <div class="order-summary">
            <div class="summary-row"><span><strong>Order Number:</strong></span> <span>#{{.OrderNumber}}</span></div>
            <div class="summary-row"><span><strong>Order Date:</strong></span> <span>{{.OrderDate}}</span></div>
            <div class="summary-row"><span><strong>Total Amount:</strong></span> <span>{{.Total}}</span></div>
        </div>

        <h3>Order Items</h3>
        {{range .Items}}
        <div class="item">
            <span>{{.Name}} (x{{.Quantity}})</span>
            <span class="item-price">{{.LineTotal}}</span>
        </div>
        {{end}}

        {{if .InvoiceURL}}
        <p style="text-align: center; margin-top: 30px;">
            <a href="{{.InvoiceURL}}" class="button">Download Invoice</a>
        </p>
        {{else}}
        <p style="margin-top: 30px;">Your invoice is being generated and will appear in your order history shortly.</p>
        {{end}}

        <p style="margin-top: 30px;">You'll receive shipping updates via email as your order moves along.</p>
    </div>
    <div class="footer">
        <p>If you have any questions about your order, just reply to this email.</p>
    </div>
</body>
</html>
`))

// OrderConfirmationData feeds the order confirmation template.
type OrderConfirmationData struct {
	OrderNumber  string
	CustomerName string
	OrderDate    string
	Total        string
	InvoiceURL   string
	Items        []OrderConfirmationItem
}

type OrderConfirmationItem struct {
	Name      string
	Quantity  int
	LineTotal string
}

func renderVerificationEmail(link string) (string, error) {
	return renderLink(verificationTmpl, link)
}

func renderPasswordResetEmail(link string) (string, error) {
	return renderLink(passwordResetTmpl, link)
}

func renderLink(t *template.Template, link string) (string, error) {
	var buf bytes.Buffer
	data := struct{ Link string }{Link: link}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderOrderConfirmation renders the invoice confirmation body sent to
// the customer and, as a copy, to the operator address.
func RenderOrderConfirmation(data OrderConfirmationData) (string, error) {
	if data.OrderDate == "" {
		data.OrderDate = time.Now().Format("January 2, 2006")
	}

	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// Package reply picks canned support replies for inbox emails.
package reply

import "support_inbox/core/domain"

// Template is one canned reply. Keywords are matched against the lowercased
// email body; a template without keywords is its category's catch-all.
type Template struct {
	Key        string
	Keywords   []string
	Author     string
	Content    string
	Confidence int
}

// categoryTemplates holds the replies of one category. Support replies are
// keyed by priority; every other category scans Variants in order.
type categoryTemplates struct {
	Variants   []Template
	ByPriority map[domain.Priority]Template
}

const customerNameVar = "customer_name"

// GenericTemplate answers anything the table has no better reply for.
var GenericTemplate = Template{
	Key:        "generic",
	Author:     "AI Customer Support",
	Confidence: 75,
	Content: "Hi ${customer_name},\n\n" +
		"Thank you for reaching out. I've received your message and I'm here to help.\n\n" +
		"I'm reviewing your request and will provide a detailed response shortly. " +
		"In the meantime, please let me know if you have any urgent questions.\n\n" +
		"Best regards,\nAI Customer Support",
}

// templates must carry an entry for every domain.Category; see
// TestTemplates_CoverEveryCategory.
var templates = map[domain.Category]categoryTemplates{
	domain.CategorySupport: {
		ByPriority: map[domain.Priority]Template{
			domain.PriorityHigh: {
				Key:        "support.high",
				Author:     "AI Technical Support",
				Confidence: 92,
				Content: "Hi ${customer_name},\n\n" +
					"Thank you for reaching out about this urgent issue. I understand the critical nature of this problem and I'm prioritizing your case immediately.\n\n" +
					"I've escalated this to our technical team and we're investigating the root cause. Here's what we're doing:\n\n" +
					"1. Immediate investigation by our senior engineers\n" +
					"2. Temporary workaround implementation if available\n" +
					"3. Root cause analysis and permanent fix\n" +
					"4. Prevention measures to avoid recurrence\n\n" +
					"I'll provide updates every 2 hours until this is resolved.\n\n" +
					"Thank you for your patience as we work to resolve this quickly.\n\n" +
					"Best regards,\nAI Technical Support",
			},
			domain.PriorityMedium: {
				Key:        "support.medium",
				Author:     "AI Support Assistant",
				Confidence: 87,
				Content: "Hi ${customer_name},\n\n" +
					"Thank you for contacting our support team. I've reviewed your issue and I'm here to help resolve this for you.\n\n" +
					"Here are the steps I recommend:\n\n" +
					"1. Sign out and back in to refresh your session\n" +
					"2. Clear your browser cache or update the app\n" +
					"3. Try again and note any error message you see\n\n" +
					"If these steps don't resolve the issue, please let me know and I'll investigate further.\n\n" +
					"Best regards,\nAI Support Assistant",
			},
			domain.PriorityLow: {
				Key:        "support.low",
				Author:     "AI Support Assistant",
				Confidence: 80,
				Content: "Hi ${customer_name},\n\n" +
					"Thanks for getting in touch. I've logged your request and our support team will follow up within one business day.\n\n" +
					"If anything changes in the meantime, just reply to this email.\n\n" +
					"Best regards,\nAI Support Assistant",
			},
		},
	},

	domain.CategoryBilling: {
		Variants: []Template{
			{
				Key:        "billing.refund",
				Keywords:   []string{"refund", "double charge", "charged twice", "duplicate"},
				Author:     "AI Billing Support",
				Confidence: 95,
				Content: "Hi ${customer_name},\n\n" +
					"I'm sorry about the incorrect charge. I've confirmed the duplicate transaction on your account and issued a refund.\n\n" +
					"The refund will appear on your statement within 3-5 business days. You'll receive a confirmation email with the reference number.\n\n" +
					"Best regards,\nAI Billing Support",
			},
			{
				Key:        "billing.invoice",
				Keywords:   []string{"invoice", "receipt"},
				Author:     "AI Billing Support",
				Confidence: 90,
				Content: "Hi ${customer_name},\n\n" +
					"I've attached a copy of the requested invoice to this reply. You can also download past invoices any time from the Billing page of your account.\n\n" +
					"Let me know if any detail on the invoice needs to be corrected.\n\n" +
					"Best regards,\nAI Billing Support",
			},
			{
				Key:        "billing",
				Author:     "AI Billing Support",
				Confidence: 94,
				Content: "Hi ${customer_name},\n\n" +
					"Thank you for reaching out about your billing inquiry. I've reviewed your account and understand your concern.\n\n" +
					"Here's what I've found and what I'm doing:\n\n" +
					"- Account review completed\n" +
					"- Issue confirmed and documented\n" +
					"- Correction initiated\n" +
					"- Account notes updated to prevent recurrence\n\n" +
					"The resolution should be reflected in your account within 3-5 business days.\n\n" +
					"I apologize for any inconvenience this may have caused.\n\n" +
					"Best regards,\nAI Billing Support",
			},
		},
	},

	domain.CategoryShipping: {
		Variants: []Template{
			{
				Key:        "shipping.delayed",
				Keywords:   []string{"delay", "late", "where is", "not arrived", "hasn't arrived", "track"},
				Author:     "AI Shipping Support",
				Confidence: 88,
				Content: "Hi ${customer_name},\n\n" +
					"I'm sorry your order hasn't arrived yet. I've checked with the carrier and your package is in transit.\n\n" +
					"You'll receive an updated tracking link by email today. If it doesn't arrive within 3 business days, we'll ship a replacement at no cost.\n\n" +
					"Best regards,\nAI Shipping Support",
			},
			{
				Key:        "shipping.address",
				Keywords:   []string{"address"},
				Author:     "AI Shipping Support",
				Confidence: 85,
				Content: "Hi ${customer_name},\n\n" +
					"Thanks for letting us know about the address change. If your order hasn't left our warehouse, I'll update the shipping address right away.\n\n" +
					"Please reply with the full new address so I can confirm it.\n\n" +
					"Best regards,\nAI Shipping Support",
			},
		},
	},

	domain.CategoryReturns: {
		Variants: []Template{
			{
				Key:        "returns.defective",
				Keywords:   []string{"defective", "broken", "damaged"},
				Author:     "AI Returns Support",
				Confidence: 86,
				Content: "Hi ${customer_name},\n\n" +
					"I'm sorry the item arrived damaged. I've created a prepaid return label and a replacement will ship as soon as the carrier scans your return.\n\n" +
					"Best regards,\nAI Returns Support",
			},
			{
				Key:        "returns.exchange",
				Keywords:   []string{"exchange", "size"},
				Author:     "AI Returns Support",
				Confidence: 84,
				Content: "Hi ${customer_name},\n\n" +
					"Happy to help with an exchange. I've emailed you a prepaid label; once the original item is on its way back we'll send the new one.\n\n" +
					"Best regards,\nAI Returns Support",
			},
			{
				Key:        "returns.return",
				Keywords:   []string{"return", "refund"},
				Author:     "AI Returns Support",
				Confidence: 83,
				Content: "Hi ${customer_name},\n\n" +
					"Your return has been approved. Use the prepaid label I've emailed you; the refund is issued to your original payment method within 5 business days of us receiving the item.\n\n" +
					"Best regards,\nAI Returns Support",
			},
		},
	},

	domain.CategoryTechnical: {
		Variants: []Template{
			{
				Key:        "technical.password",
				Keywords:   []string{"password", "reset", "login", "locked"},
				Author:     "AI Technical Support",
				Confidence: 90,
				Content: "Hi ${customer_name},\n\n" +
					"I've sent a password reset link to the email address on your account. The link is valid for 60 minutes.\n\n" +
					"If you don't see it, check your spam folder or reply here and I'll unlock the account manually.\n\n" +
					"Best regards,\nAI Technical Support",
			},
			{
				Key:        "technical.bug",
				Keywords:   []string{"bug", "error", "crash"},
				Author:     "AI Technical Support",
				Confidence: 80,
				Content: "Hi ${customer_name},\n\n" +
					"Thanks for reporting this. I've passed the details to our engineering team and opened a ticket to track the fix.\n\n" +
					"Could you tell me which device and app version you're using? That helps us reproduce the problem.\n\n" +
					"Best regards,\nAI Technical Support",
			},
		},
	},

	domain.CategorySales: {
		Variants: []Template{
			{
				Key:        "sales",
				Author:     "AI Sales Assistant",
				Confidence: 89,
				Content: "Hi ${customer_name},\n\n" +
					"Thank you for your interest in our solutions! I'm excited to help you find the perfect fit for your needs.\n\n" +
					"Next steps:\n" +
					"1. Review the proposed solution\n" +
					"2. Schedule a demo call if you'd like\n" +
					"3. Discuss any customization needs\n" +
					"4. Plan implementation timeline\n\n" +
					"Are you available for a 30-minute demo this week?\n\n" +
					"Best regards,\nAI Sales Assistant",
			},
		},
	},

	domain.CategoryGeneral: {
		Variants: []Template{GenericTemplate},
	},
}

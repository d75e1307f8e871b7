package render

import "github.com/proofhub/proof-notify/internal/domain"

// Built-in template keys.
const (
	TemplateProofReady = "proof_ready"
	TemplateDecision   = "decision"
	TemplateInvite     = "invite"
	TemplateReset      = "reset"
)

const (
	defaultProofReadySubject = "New proof ready: {{job_name}}"
	defaultProofReadyBody    = "Hi {{customer_name}},\n\n" +
		"A new proof \"{{job_name}}\" is ready for your review.\n" +
		"You can view it here: {{proof_link}}\n\n" +
		"If you have feedback, feel free to leave a comment directly on the approval page.\n\n" +
		"Regards,\n{{designer_name}}"
)

// Catalog holds the built-in templates. Stored templates with the same key
// take precedence at lookup time in the notification service.
type Catalog struct {
	templates map[string]domain.Template
}

// NewCatalog builds the built-in set. Non-empty subject or body replace the
// proof_ready defaults.
func NewCatalog(proofReadySubject, proofReadyBody string) *Catalog {
	if proofReadySubject == "" {
		proofReadySubject = defaultProofReadySubject
	}
	if proofReadyBody == "" {
		proofReadyBody = defaultProofReadyBody
	}

	c := &Catalog{templates: make(map[string]domain.Template)}
	c.add(domain.Template{
		Key:     TemplateProofReady,
		Subject: proofReadySubject,
		Body:    proofReadyBody,
	})
	c.add(domain.Template{
		Key:     TemplateDecision,
		Subject: "{{job_name}}: proof {{decision}}",
		Body: "Hi {{designer_name}},\n\n" +
			"{{customer_name}} has {{decision}} the proof \"{{job_name}}\".\n" +
			"{{comment}}\n\n" +
			"View it here: {{proof_link}}",
	})
	c.add(domain.Template{
		Key:     TemplateInvite,
		Subject: "{{company_name}}: Finish setting up your account",
		Body: "Hi {{customer_name}},\n\n" +
			"You've been invited to review proofs with {{company_name}}.\n" +
			"Set up your customer portal account here: {{invite_link}}\n\n" +
			"This link expires in {{expires_in}}.\n\n" +
			"Regards,\n{{company_name}}",
	})
	c.add(domain.Template{
		Key:     TemplateReset,
		Subject: "{{company_name}}: Reset your customer portal password",
		Body: "Hi {{customer_name}},\n\n" +
			"We received a request to reset your customer portal password.\n" +
			"Choose a new password here: {{reset_link}}\n\n" +
			"This link expires in {{expires_in}}. If you did not request a reset, you can ignore this email.\n\n" +
			"Regards,\n{{company_name}}",
	})
	return c
}

func (c *Catalog) add(t domain.Template) { c.templates[t.Key] = t }

// Lookup returns the built-in template for key.
func (c *Catalog) Lookup(key string) (domain.Template, bool) {
	t, ok := c.templates[key]
	return t, ok
}

// Fallback is used when a rendered part comes out blank.
func (c *Catalog) Fallback() domain.Template {
	return c.templates[TemplateProofReady]
}

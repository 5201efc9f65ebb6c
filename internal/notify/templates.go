// internal/notify/templates.go
package notify

import (
	"fmt"
	"strings"

	"admissions-workflow/internal/models"
)

const supportLine = "Questions? Reply to this email or call (317) 314-3757."

// DefaultTemplates covers the statuses applicants are told about. Statuses
// without a template produce no notification.
func DefaultTemplates() map[models.Status]models.NotificationTemplate {
	return map[models.Status]models.NotificationTemplate{
		models.StatusSubmitted: {
			Status:  models.StatusSubmitted,
			Subject: "We received your application",
			Body: "Hi {{name}},\n\nThanks, we received your {{recordType}} application ({{applicationId}}).\n\n" +
				"Next step: upload the required documents so we can verify and move your application forward.\n\n" + supportLine,
			SMS: "We received your application {{applicationId}}. Upload your documents to continue.",
		},
		models.StatusInReview: {
			Status:  models.StatusInReview,
			Subject: "Your application is in review",
			Body:    "Hi {{name}},\n\nYour application {{applicationId}} is now being reviewed by our admissions team.\n\n" + supportLine,
			SMS:     "Your application {{applicationId}} is in review.",
		},
		models.StatusApproved: {
			Status:  models.StatusApproved,
			Subject: "Application approved",
			Body: "Hi {{name}},\n\nCongratulations! Your application {{applicationId}} has been approved.\n\n" +
				"We will follow up with onboarding details shortly.\n\n" + supportLine,
			SMS: "Congratulations! Your application {{applicationId}} has been approved.",
		},
		models.StatusRejected: {
			Status:  models.StatusRejected,
			Subject: "Update on your application",
			Body: "Hi {{name}},\n\nThank you for your interest. After review, we are unable to move application " +
				"{{applicationId}} forward at this time.\n\nReason: {{reason}}\n\n" + supportLine,
			SMS: "There is an update on your application {{applicationId}}. Please check your email.",
		},
	}
}

// renderTemplate replaces {{key}} placeholders and drops the ones with no
// value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

// contact pulls the applicant's name, email and phone out of the intake
// payload. Partner and employer intakes name a contact person.
func contact(intake map[string]interface{}) (name, email, phone string) {
	str := func(key string) string {
		s, _ := intake[key].(string)
		return strings.TrimSpace(s)
	}
	name = strings.TrimSpace(str("first_name") + " " + str("last_name"))
	if name == "" {
		name = str("contact_name")
	}
	if name == "" {
		name = "there"
	}
	return name, str("email"), str("phone")
}

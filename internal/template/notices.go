package template

import "github.com/BiblioOps/Noticus/internal/domain/notice"

// Set holds the three templates of one notice type. Text doubles as the
// SMS body.
type Set struct {
	Subject string
	HTML    string
	Text    string
}

var sets = map[notice.Type]Set{
	notice.TypeHoldReady: {
		Subject: "{{library.name}}: your hold is ready",
		HTML: "<p>Hello {{patron.name}},</p>" +
			"<p>Your hold on <strong>{{item.title}}</strong> is ready for pickup at {{library.name}}." +
			" Please collect it by {{item.pickup_by}}.</p>",
		Text: "Hello {{patron.name}}, your hold on {{item.title}} is ready for pickup at {{library.name}}. Please collect it by {{item.pickup_by}}.",
	},
	notice.TypeOverdue: {
		Subject: "{{library.name}}: overdue item",
		HTML: "<p>Hello {{patron.name}},</p>" +
			"<p><strong>{{item.title}}</strong> was due on {{item.due_date}}. Please return or renew it.</p>",
		Text: "Hello {{patron.name}}, {{item.title}} was due on {{item.due_date}}. Please return or renew it.",
	},
	notice.TypeEventReminder: {
		Subject: "Reminder: {{event.title}}",
		HTML: "<p>Hello {{patron.name}},</p>" +
			"<p>A reminder that <strong>{{event.title}}</strong> starts at {{event.starts_at}}, {{event.location}}." +
			" See you there!</p><p>&mdash; {{library.name}}</p>",
		Text: "Hello {{patron.name}}, a reminder that {{event.title}} starts at {{event.starts_at}}, {{event.location}}. - {{library.name}}",
	},
}

var required = map[notice.Type][]string{
	notice.TypeHoldReady:     {"patron.name", "item.title", "library.name"},
	notice.TypeOverdue:       {"patron.name", "item.title", "item.due_date"},
	notice.TypeEventReminder: {"patron.name", "event.title", "event.starts_at"},
}

// ForType returns the template set of a notice type.
func ForType(t notice.Type) (Set, bool) {
	s, ok := sets[t]
	return s, ok
}

// Required lists the context paths a notice type cannot render without.
func Required(t notice.Type) []string {
	return required[t]
}

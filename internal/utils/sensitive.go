package utils

import "strings"

// Application questions a human should always see before submission.
var sensitiveTopics = []string{
	"salary",
	"compensation",
	"visa",
	"sponsorship",
	"disability",
	"veteran",
	"criminal",
	"gender",
	"race",
	"ethnicity",
}

func IsSensitiveQuestion(label string) bool {
	l := strings.ToLower(label)
	for _, topic := range sensitiveTopics {
		if strings.Contains(l, topic) {
			return true
		}
	}
	return false
}

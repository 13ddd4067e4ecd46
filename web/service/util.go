package service

import (
	"fmt"
	"strings"
)

// joinLimited joins at most limit names and notes how many were left out.
func joinLimited(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:limit], ", "), len(names)-limit)
}

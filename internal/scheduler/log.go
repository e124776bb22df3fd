package scheduler

import (
	"fmt"
	"strings"
)

func sprint(args ...interface{}) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"confectionery/pkg/domain/model"
)

// requestFingerprint hashes the content of a create request. Line order is
// significant.
func requestFingerprint(draft model.OrderDraft) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(draft.ClientID, 10))
	for _, line := range draft.Lines {
		fmt.Fprintf(&b, "|%d:%s:%s",
			line.ProductID,
			strconv.FormatFloat(line.Quantity, 'g', -1, 64),
			strconv.FormatFloat(line.UnitPrice, 'g', -1, 64),
		)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

/**
 * @description
 * Queue Allocator helpers: pickup queue classification and slot code
 * generation. The per-day queue number itself is allocated inside the
 * approval transaction (see store), because it must be taken and persisted
 * atomically.
 */

package app

import (
	"crypto/rand"

	"github.com/cecoalimentos/fulfillment-service/internal/domain"
)

// slotCodeAlphabet is the character set for human-facing slot codes.
const slotCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// slotCodeLength is the fixed length of a slot code.
const slotCodeLength = 8

// priorityMemberTypes are the vulnerable member categories that collect from
// the priority queue.
var priorityMemberTypes = map[string]bool{
	"adulto_mayor":  true,
	"discapacitado": true,
}

// ClassifyQueue maps a member's type to a pickup queue class. Classification
// never affects numbering; both classes share one per-day sequence.
func ClassifyQueue(member *domain.Member) domain.QueueClass {
	if member != nil && priorityMemberTypes[member.MemberType] {
		return domain.QueuePriority
	}
	return domain.QueueRegular
}

// GenerateSlotCode returns an 8-character uppercase alphanumeric code.
// Collisions are possible and handled by the store with regeneration on a
// uniqueness violation.
func GenerateSlotCode() string {
	buf := make([]byte, slotCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// nothing sensible to degrade to.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = slotCodeAlphabet[int(b)%len(slotCodeAlphabet)]
	}
	return string(buf)
}

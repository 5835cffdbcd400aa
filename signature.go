/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package leadflow

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// SignPayload computes the lowercase-hex HMAC-SHA256 of body keyed by secret.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signatureHex against the current secret and, on
// mismatch, against the previous secret while its grace window is open.
// body must be the exact raw bytes as received; re-encoding the payload
// between receipt and verification breaks the digest.
func VerifySignature(body []byte, signatureHex, currentSecret, previousSecret string, rotatedAt *time.Time, grace time.Duration) bool {
	signatureHex = strings.ToLower(strings.TrimSpace(signatureHex))
	if signatureHex == "" {
		return false
	}

	if matchSignature(body, signatureHex, currentSecret) {
		return true
	}

	if previousSecret == "" || rotatedAt == nil {
		return false
	}
	if !time.Now().Before(rotatedAt.Add(grace)) {
		return false
	}
	return matchSignature(body, signatureHex, previousSecret)
}

func matchSignature(body []byte, signatureHex, secret string) bool {
	expected := SignPayload(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureHex)) == 1
}

// GenerateSecret returns a new opaque webhook signing secret. The caller sees
// it exactly once; only its hash-equality matters afterwards.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

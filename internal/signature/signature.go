// Package signature verifies that inbound webhooks really came from Slack.
//
// Slack signs each request with HMAC-SHA256 over "v0:{timestamp}:{body}" keyed
// by the app's signing secret, and sends the hex digest prefixed with "v0=" in
// the X-Slack-Signature header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	// versionPrefix is the signature scheme version Slack currently uses.
	versionPrefix = "v0"
	// replayWindow is the maximum accepted clock skew between the request
	// timestamp and now; anything older is treated as a replay.
	replayWindow = 300 * time.Second
)

// Verify checks the provided signature against one recomputed from the request
// body, timestamp, and signing secret. It returns false for any mismatch,
// malformed timestamp, or a timestamp outside the replay window.
func Verify(body []byte, timestamp, signature, signingSecret string) bool {
	return verifyAt(time.Now(), body, timestamp, signature, signingSecret)
}

func verifyAt(now time.Time, body []byte, timestamp, signature, signingSecret string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > replayWindow {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte(versionPrefix + ":" + timestamp + ":"))
	mac.Write(body)
	expected := versionPrefix + "=" + hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant time.
	return hmac.Equal([]byte(expected), []byte(signature))
}

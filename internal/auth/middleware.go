package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

const (
	maxFutureWindow = 5 * time.Minute

	callerKey  = "caller"
	requestKey = "signed_request"
)

// NonceKeyFmt is the Redis key marking a nonce as used, keyed by namespace.
const NonceKeyFmt = "%s:nonce:%s"

// Middleware returns a Gin handler that validates sr25519 account signatures.
func Middleware(rdb *redis.Client, namespace string) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountHdr := c.GetHeader(HeaderAccount)
		signedMsgB64 := c.GetHeader(HeaderMessage)
		sigHex := c.GetHeader(HeaderSignature)

		if accountHdr == "" || signedMsgB64 == "" || sigHex == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth headers"})
			return
		}

		caller, err := account.Parse(accountHdr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-Account-Id"})
			return
		}

		msgBytes, err := base64.StdEncoding.DecodeString(signedMsgB64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid X-Signed-Message encoding"})
			return
		}

		var req SignedRequest
		if err := json.Unmarshal(msgBytes, &req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signed message JSON"})
			return
		}

		now := time.Now().Unix()

		if req.ExpiresAt <= now {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request expired"})
			return
		}
		if req.ExpiresAt > now+int64(maxFutureWindow.Seconds()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "expires_at too far in future"})
			return
		}

		sig, err := hexutil.Decode(sigHex)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature hex"})
			return
		}
		if err := Verify(caller, msgBytes, sig); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		// Nonce dedup via Redis SET NX, kept until the request would expire anyway.
		nonceKey := fmt.Sprintf(NonceKeyFmt, namespace, req.Nonce)
		ttl := time.Duration(req.ExpiresAt-now) * time.Second
		set, err := rdb.SetNX(c.Request.Context(), nonceKey, 1, ttl).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !set {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "nonce already used"})
			return
		}

		c.Set(callerKey, caller)
		c.Set(requestKey, &req)
		c.Next()
	}
}

// Caller returns the authenticated account set by Middleware.
func Caller(c *gin.Context) (account.ID, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return account.ID{}, false
	}
	id, ok := v.(account.ID)
	return id, ok
}

// Request returns the verified signed request set by Middleware.
func Request(c *gin.Context) (*SignedRequest, bool) {
	v, ok := c.Get(requestKey)
	if !ok {
		return nil, false
	}
	req, ok := v.(*SignedRequest)
	return req, ok
}

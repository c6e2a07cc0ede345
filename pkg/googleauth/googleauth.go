// Package googleauth 校验 Google 登录返回的 ID Token
package googleauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("Google 凭证无效")
	ErrEmailNotVerified = errors.New("Google 邮箱未验证")
	ErrNotConfigured    = errors.New("未配置 Google 登录")
)

var validIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

const defaultKeyTTL = time.Hour

// Identity 经过校验的 Google 用户身份
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier ID Token 校验接口（便于测试替换）
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwtv5.RegisteredClaims
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// JWKSVerifier 使用 Google 公钥集 (JWKS) 校验 RS256 签名
type JWKSVerifier struct {
	clientID string
	jwksURL  string
	client   *http.Client
	logger   *zap.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewJWKSVerifier 创建校验器
func NewJWKSVerifier(clientID, jwksURL string, logger *zap.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		clientID: clientID,
		jwksURL:  jwksURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		keys:     make(map[string]*rsa.PublicKey),
	}
}

// Verify 校验签名、aud、iss、exp 与 email_verified
func (v *JWKSVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v.clientID == "" {
		return nil, ErrNotConfigured
	}

	claims := &idTokenClaims{}
	_, err := jwtv5.ParseWithClaims(idToken, claims, func(t *jwtv5.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithAudience(v.clientID),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("Google ID Token 校验失败", zap.Error(err))
		return nil, ErrInvalidToken
	}

	if !validIssuers[claims.Issuer] {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// key 按 kid 查找公钥，缓存过期或 kid 未知时重新拉取
func (v *JWKSVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	k, ok := v.keys[kid]
	fresh := time.Now().Before(v.expiresAt)
	v.mu.RUnlock()
	if ok && fresh {
		return k, nil
	}

	if err := v.refresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("未知的签名密钥 kid=%q", kid)
}

func (v *JWKSVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("拉取 JWKS 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("拉取 JWKS 失败: HTTP %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("解析 JWKS 失败: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			v.logger.Warn("跳过无法解析的 JWK", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.expiresAt = time.Now().Add(defaultKeyTTL)
	v.mu.Unlock()
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("非法的 RSA 指数")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil
}

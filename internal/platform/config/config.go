package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultSecurityEnvironment = "local"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer      = "https://accounts.google.com"
	defaultSecurityIAPIssuer   = "https://cloud.google.com/iap"
	defaultHMACSignatureHeader = "X-Signature"
	defaultHMACTimestampHeader = "X-Signature-Timestamp"
	defaultHMACNonceHeader     = "X-Signature-Nonce"
	defaultHMACClockSkew       = 5 * time.Minute
	defaultHMACNonceTTL        = 5 * time.Minute
	defaultClientTimeout       = 10 * time.Second
	defaultWarehousesCacheTTL  = time.Hour
	defaultPurchasePriceTTL    = 10 * time.Minute
	defaultSignedURLTTL        = 15 * time.Minute
	defaultOrderPaidSub        = "order-paid"
	defaultOrderCancelledSub   = "order-cancelled"
	defaultMinOrderAmount      = 50
	defaultMaxFreeSmallOrders  = 3
	defaultReferralOrdersTo    = 2
	defaultReferralValue       = 250
	defaultAntifraudThreshold  = 3
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Firestore  FirestoreConfig
	PubSub     PubSubConfig
	Storage    StorageConfig
	Clients    ClientConfig
	Cache      CacheConfig
	Promotions PromotionConfig
	Referral   ReferralConfig
	Antifraud  AntifraudConfig
	Messages   MessageCatalog
	Features   FeatureFlags
	Security   SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the subscriptions that carry order lifecycle events.
type PubSubConfig struct {
	ProjectID                  string
	OrderPaidSubscription      string
	OrderCancelledSubscription string
}

// StorageConfig lists bucket parameters for promo imagery.
type StorageConfig struct {
	BannersBucket string
	SignedURLTTL  time.Duration
}

// ClientConfig configures the outbound warehouse and pricing HTTP clients.
type ClientConfig struct {
	WarehouseBaseURL string
	PricingBaseURL   string
	AuthToken        string
	Timeout          time.Duration
}

// CacheConfig controls in-process cache lifetimes.
type CacheConfig struct {
	WarehousesTTL     time.Duration
	PurchasePricesTTL time.Duration
}

// PromotionConfig groups promotion engine tunables.
type PromotionConfig struct {
	// MinOrderAmount is the floor in cents a coupon may not discount below.
	MinOrderAmount     int64
	MaxFreeSmallOrders int64
}

// ReferralConfig shapes coupons issued through the referral programme.
type ReferralConfig struct {
	// OrdersTo bounds redemption to customers with fewer completed orders.
	OrdersTo           int64
	Value              int64
	MaxDiscount        int64
	Quantity           int64
	Limit              int64
	MinimumOrderAmount int64
}

// AntifraudConfig controls device-fingerprint screening of referral redemptions.
type AntifraudConfig struct {
	CheckEnabled        bool
	UsersPerFingerprint int64
}

// BarMessage is one progress-bar text variant. Placeholders render above the
// bar when no segment titles apply; templates may reference {remaining_amount},
// {bonus_amount}, {fee_amount}, {required_amount} and {fee_subtotal} tokens.
type BarMessage struct {
	Placeholders   []string
	FirstTitle     string
	FirstSubtitle  string
	SecondTitle    string
	SecondSubtitle string
}

// MessageCatalog holds every customer-facing template used by the
// conditions composers. Image URLs may be overridden per deployment.
type MessageCatalog struct {
	ProgressBarImageInfo  string
	ProgressBarImageBonus string
	ConditionsImage       string
	DeliveryImage         string
	BonusImage            string
	GiftImage             string

	FeeNoBonus             BarMessage
	FeeNoBonusPassed       BarMessage
	FeeWithBonusEmpty      BarMessage
	FeeWithBonusFirst      BarMessage
	FeeWithBonusSecond     BarMessage
	FeeWithBonusDouble     BarMessage
	FeeWithBonusOn         BarMessage
	HappyHoursEmpty        BarMessage
	HappyHoursNoBonus      BarMessage
	HappyHoursFee          BarMessage
	HappyHoursNoFeeCart    BarMessage
	HappyHoursNoFeeCatalog BarMessage
	HappyHoursOn           BarMessage

	FirstFreeDeliveryTitle    string
	FirstFreeDeliverySubtitle string
	DeliveryFeeTitle          string
	DeliveryFeeActiveSubtitle string
	DeliveryFeeFreeSubtitle   string
	SmallOrderFeeTitle        string
	SmallOrderFeeSubtitle     string
	BonusTitle                string
	BonusSubtitle             string
	GiftTitle                 string

	LargeBonusActiveTitle string
	LargeBonusTitle       string

	ChainTitlePrefix    string
	ChainTitleSeparator string
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	// ChainedConditions switches the conditions endpoint to the chained
	// progress-bar composer instead of the legacy decision table.
	ChainedConditions bool
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
	HMAC        HMACConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// HMACConfig captures request signing expectations for internal callers.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	names := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		names = append(names, secret.redacted)
	}
	sort.Strings(names)
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(names, ", "))
}

// RedactedNames returns a copy of the redacted secret identifiers.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

// EnvironmentValues returns the effective key/value environment map after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). Callers can use the result to initialise
// dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		if source == nil {
			return
		}
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		system := make(map[string]string)
		for _, entry := range os.Environ() {
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			system[key] = parts[1]
		}
		merge(system)
	}

	merge(options.envMap)

	return values, nil
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers as mandatory.
// Identifiers should match the config field names recorded by the loader
// (e.g. "Clients.AuthToken" or "Security.HMAC.Secrets[checkout]").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets causes Load to panic when required secrets are missing.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "PROMO_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "PROMO_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "PROMO_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "PROMO_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "PROMO_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "PROMO_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:                  stringWithDefault(lookup, "PROMO_PUBSUB_PROJECT_ID", ""),
			OrderPaidSubscription:      stringWithDefault(lookup, "PROMO_PUBSUB_ORDER_PAID_SUB", defaultOrderPaidSub),
			OrderCancelledSubscription: stringWithDefault(lookup, "PROMO_PUBSUB_ORDER_CANCELLED_SUB", defaultOrderCancelledSub),
		},
		Storage: StorageConfig{
			BannersBucket: stringWithDefault(lookup, "PROMO_STORAGE_BANNERS_BUCKET", ""),
			SignedURLTTL:  durationWithDefault(lookup, "PROMO_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Clients: ClientConfig{
			WarehouseBaseURL: stringWithDefault(lookup, "PROMO_CLIENT_WAREHOUSE_URL", ""),
			PricingBaseURL:   stringWithDefault(lookup, "PROMO_CLIENT_PRICING_URL", ""),
			AuthToken:        stringWithDefault(lookup, "PROMO_CLIENT_AUTH_TOKEN", ""),
			Timeout:          durationWithDefault(lookup, "PROMO_CLIENT_TIMEOUT", defaultClientTimeout),
		},
		Cache: CacheConfig{
			WarehousesTTL:     durationWithDefault(lookup, "PROMO_CACHE_WAREHOUSES_TTL", defaultWarehousesCacheTTL),
			PurchasePricesTTL: durationWithDefault(lookup, "PROMO_CACHE_PURCHASE_PRICES_TTL", defaultPurchasePriceTTL),
		},
		Promotions: PromotionConfig{
			MinOrderAmount:     int64WithDefault(lookup, "PROMO_MIN_ORDER_AMOUNT", defaultMinOrderAmount),
			MaxFreeSmallOrders: int64WithDefault(lookup, "PROMO_MAX_FREE_SMALL_ORDERS", defaultMaxFreeSmallOrders),
		},
		Referral: ReferralConfig{
			OrdersTo:           int64WithDefault(lookup, "PROMO_REFERRAL_ORDERS_TO", defaultReferralOrdersTo),
			Value:              int64WithDefault(lookup, "PROMO_REFERRAL_VALUE", defaultReferralValue),
			MaxDiscount:        int64WithDefault(lookup, "PROMO_REFERRAL_MAX_DISCOUNT", 0),
			Quantity:           int64WithDefault(lookup, "PROMO_REFERRAL_QUANTITY", 0),
			Limit:              int64WithDefault(lookup, "PROMO_REFERRAL_LIMIT", 0),
			MinimumOrderAmount: int64WithDefault(lookup, "PROMO_REFERRAL_MIN_ORDER_AMOUNT", 0),
		},
		Antifraud: AntifraudConfig{
			CheckEnabled:        boolWithDefault(lookup, "PROMO_ANTIFRAUD_CHECK_ENABLED", true),
			UsersPerFingerprint: int64WithDefault(lookup, "PROMO_ANTIFRAUD_USERS_PER_FINGERPRINT", defaultAntifraudThreshold),
		},
		Messages: defaultMessageCatalog(lookup),
		Features: FeatureFlags{
			ChainedConditions: boolWithDefault(lookup, "PROMO_FEATURE_CHAINED_CONDITIONS", false),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "PROMO_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   stringWithDefault(lookup, "PROMO_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  stringWithDefault(lookup, "PROMO_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: mapWithDefault(lookup, "PROMO_SECURITY_OIDC_AUDIENCES"),
				Issuers:   csvWithDefault(lookup, "PROMO_SECURITY_OIDC_ISSUERS"),
			},
			HMAC: HMACConfig{
				Secrets:         mapWithDefault(lookup, "PROMO_SECURITY_HMAC_SECRETS"),
				SignatureHeader: stringWithDefault(lookup, "PROMO_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: stringWithDefault(lookup, "PROMO_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				NonceHeader:     stringWithDefault(lookup, "PROMO_SECURITY_HMAC_HEADER_NONCE", defaultHMACNonceHeader),
				ClockSkew:       durationWithDefault(lookup, "PROMO_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
				NonceTTL:        durationWithDefault(lookup, "PROMO_SECURITY_HMAC_NONCE_TTL", defaultHMACNonceTTL),
			},
		},
	}

	resolvedSecrets := make(map[string]string)
	recordSecret := func(name, value string) {
		resolvedSecrets[name] = strings.TrimSpace(value)
	}
	resolveField := func(name string, field *string) error {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return err
		}
		*field = resolved
		recordSecret(name, resolved)
		return nil
	}

	// PubSub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}

	envKey := strings.ToLower(cfg.Security.Environment)
	if cfg.Security.OIDC.Audience == "" && cfg.Security.OIDC.Audiences != nil {
		if audience, ok := cfg.Security.OIDC.Audiences[envKey]; ok {
			cfg.Security.OIDC.Audience = audience
		}
	}

	for key, value := range cfg.Security.HMAC.Secrets {
		fieldName := fmt.Sprintf("Security.HMAC.Secrets[%s]", key)
		resolved, err := resolveSecret(ctx, value, options.secret)
		if err != nil {
			return Config{}, err
		}
		cfg.Security.HMAC.Secrets[key] = resolved
		recordSecret(fieldName, resolved)
	}

	if err := resolveField("Clients.AuthToken", &cfg.Clients.AuthToken); err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func defaultMessageCatalog(lookup func(string) (string, bool)) MessageCatalog {
	return MessageCatalog{
		ProgressBarImageInfo:  stringWithDefault(lookup, "PROMO_MESSAGES_PROGRESS_IMAGE_INFO", ""),
		ProgressBarImageBonus: stringWithDefault(lookup, "PROMO_MESSAGES_PROGRESS_IMAGE_BONUS", ""),
		ConditionsImage:       stringWithDefault(lookup, "PROMO_MESSAGES_CONDITIONS_IMAGE", ""),
		DeliveryImage:         stringWithDefault(lookup, "PROMO_MESSAGES_DELIVERY_IMAGE", ""),
		BonusImage:            stringWithDefault(lookup, "PROMO_MESSAGES_BONUS_IMAGE", ""),
		GiftImage:             stringWithDefault(lookup, "PROMO_MESSAGES_GIFT_IMAGE", ""),

		FeeNoBonus: BarMessage{
			FirstTitle: "Add {remaining_amount} to avoid small order fee",
		},
		FeeNoBonusPassed: BarMessage{
			Placeholders: []string{"Yay, no small order fee"},
		},
		FeeWithBonusEmpty: BarMessage{
			Placeholders: []string{"Add {remaining_amount} to get {bonus_amount} off"},
		},
		FeeWithBonusFirst: BarMessage{
			FirstTitle: "Add {remaining_amount} to avoid small order fee",
		},
		FeeWithBonusSecond: BarMessage{
			SecondTitle: "Add {remaining_amount} to get {bonus_amount} off",
		},
		FeeWithBonusDouble: BarMessage{
			FirstTitle:  "No small order fee!",
			SecondTitle: "Add {remaining_amount} to get {bonus_amount} off",
		},
		FeeWithBonusOn: BarMessage{
			Placeholders: []string{"Yay, {bonus_amount} off your order"},
		},
		HappyHoursEmpty: BarMessage{
			Placeholders: []string{"Yay, it's happy hour. Add {remaining_amount} to get {bonus_amount} off"},
		},
		HappyHoursNoBonus: BarMessage{
			FirstTitle: "Add {remaining_amount} to get {bonus_amount} off",
		},
		HappyHoursFee: BarMessage{
			FirstTitle: "Add {remaining_amount} to avoid small order fee",
		},
		HappyHoursNoFeeCatalog: BarMessage{
			FirstTitle:  "No small order fee!",
			SecondTitle: "Add {remaining_amount} more to get {bonus_amount} off",
		},
		HappyHoursNoFeeCart: BarMessage{
			SecondTitle: "Add {remaining_amount} more to get {bonus_amount} off",
		},
		HappyHoursOn: BarMessage{
			Placeholders: []string{"Yay, {bonus_amount} off your order"},
		},

		FirstFreeDeliveryTitle:    "$0.00 delivery fee on your first {free_orders_count} orders",
		FirstFreeDeliverySubtitle: "{delivery_fee_amount} delivery fee amount for all other orders under {fee_subtotal}",
		DeliveryFeeTitle:          "Delivery fee is {delivery_fee_amount}",
		DeliveryFeeActiveSubtitle: "$0.00 for orders with subtotal over {fee_subtotal}",
		DeliveryFeeFreeSubtitle:   "Your subtotal is over {fee_subtotal}",
		SmallOrderFeeTitle:        "No small order fee for subtotal over {required_amount}",
		SmallOrderFeeSubtitle:     "Small order fee is {fee_amount}",
		BonusTitle:                "{bonus_amount} off bonus for subtotal over {required_amount}",
		BonusSubtitle:             "* Discounts do not apply on alcohol and tobacco products",
		GiftTitle:                 "Gift for subtotal over {required_amount}",

		LargeBonusActiveTitle: "{bonus_amount} off your order",
		LargeBonusTitle:       "Just spend {remaining_amount} more and get {bonus_amount} off your order",

		ChainTitlePrefix:    "Yay, ",
		ChainTitleSeparator: " + ",
	}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" {
		return value, nil
	}
	if !isSecretReference(value) {
		return value, nil
	}
	if resolver == nil {
		normalized := normalizeSecretReference(value)
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	normalized := normalizeSecretReference(value)
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.PubSub.OrderPaidSubscription == "" {
		missing = append(missing, "PubSub.OrderPaidSubscription")
	}
	if cfg.PubSub.OrderCancelledSubscription == "" {
		missing = append(missing, "PubSub.OrderCancelledSubscription")
	}
	if cfg.Promotions.MinOrderAmount < 0 {
		missing = append(missing, "Promotions.MinOrderAmount")
	}
	if cfg.Referral.OrdersTo <= 0 {
		missing = append(missing, "Referral.OrdersTo")
	}
	if cfg.Referral.Value <= 0 {
		missing = append(missing, "Referral.Value")
	}
	if cfg.Antifraud.UsersPerFingerprint <= 0 {
		missing = append(missing, "Antifraud.UsersPerFingerprint")
	}
	if cfg.Cache.WarehousesTTL <= 0 {
		missing = append(missing, "Cache.WarehousesTTL")
	}
	if cfg.Cache.PurchasePricesTTL <= 0 {
		missing = append(missing, "Cache.PurchasePricesTTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if value := strings.TrimSpace(resolved[trimmed]); value != "" {
			continue
		}
		missing = append(missing, missingSecret{
			name:     trimmed,
			redacted: redactSecretName(trimmed),
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		secret := strings.TrimSpace(parts[1])
		if name == "" || secret == "" {
			continue
		}
		values[name] = secret
	}
	return values
}

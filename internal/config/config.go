/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * Provider credentials are deliberately optional: a missing Stripe or
 * Paystack secret degrades that provider's checkout to a precondition error
 * instead of preventing the service from booting.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the onboarding-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	EventQueue  string `mapstructure:"EVENT_QUEUE"`
	AuthJWKSURL string `mapstructure:"AUTH_JWKS_URL"`
	AppBaseURL  string `mapstructure:"APP_BASE_URL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PaystackSecretKey   string `mapstructure:"PAYSTACK_SECRET_KEY"`

	EmailJSServiceID          string `mapstructure:"EMAILJS_SERVICE_ID"`
	EmailJSUserID             string `mapstructure:"EMAILJS_USER_ID"`
	EmailJSTemplateWelcome    string `mapstructure:"EMAILJS_TEMPLATE_WELCOME"`
	EmailJSTemplateSubmission string `mapstructure:"EMAILJS_TEMPLATE_SUBMISSION"`
	EmailJSTemplateAdminAlert string `mapstructure:"EMAILJS_TEMPLATE_ADMIN_ALERT"`
	EmailJSTemplateStatus     string `mapstructure:"EMAILJS_TEMPLATE_STATUS"`
	EmailJSTemplateReceipt    string `mapstructure:"EMAILJS_TEMPLATE_RECEIPT"`

	AdminEmail string `mapstructure:"ADMIN_EMAIL"`
	AdminUID   string `mapstructure:"ADMIN_UID"`

	ReconcileSchedule     string `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileStaleMinutes int    `mapstructure:"RECONCILE_STALE_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("EVENT_QUEUE", "onboarding_service.events")
	viper.SetDefault("APP_BASE_URL", "http://localhost:3000")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 30m")
	viper.SetDefault("RECONCILE_STALE_MINUTES", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_QUEUE")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("APP_BASE_URL")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("EMAILJS_SERVICE_ID")
	_ = viper.BindEnv("EMAILJS_USER_ID")
	_ = viper.BindEnv("EMAILJS_TEMPLATE_WELCOME")
	_ = viper.BindEnv("EMAILJS_TEMPLATE_SUBMISSION")
	_ = viper.BindEnv("EMAILJS_TEMPLATE_ADMIN_ALERT")
	_ = viper.BindEnv("EMAILJS_TEMPLATE_STATUS")
	_ = viper.BindEnv("EMAILJS_TEMPLATE_RECEIPT")
	_ = viper.BindEnv("ADMIN_EMAIL")
	_ = viper.BindEnv("ADMIN_UID")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("RECONCILE_STALE_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.StripeSecretKey = strings.TrimSpace(config.StripeSecretKey)
	config.StripeWebhookSecret = strings.TrimSpace(config.StripeWebhookSecret)
	config.PaystackSecretKey = strings.TrimSpace(config.PaystackSecretKey)

	if config.StripeSecretKey == "" {
		log.Println("level=warn component=config msg=\"stripe secret not configured; stripe checkout disabled\" env=STRIPE_SECRET_KEY")
	}
	if config.PaystackSecretKey == "" {
		log.Println("level=warn component=config msg=\"paystack secret not configured; paystack checkout disabled\" env=PAYSTACK_SECRET_KEY")
	}
	if config.EmailJSServiceID == "" || config.EmailJSUserID == "" {
		log.Println("level=warn component=config msg=\"emailjs not configured; outbound email disabled\"")
	}

	if config.ReconcileStaleMinutes <= 0 {
		config.ReconcileStaleMinutes = 60
	}

	return
}

package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSMConfig names the parameter store entries holding the backend origins in prod.
type SSMConfig struct {
	APIURLParam string `mapstructure:"api_url_param"`
	WSURLParam  string `mapstructure:"ws_url_param"`
}

type parameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveOrigins replaces the backend origins with their parameter store
// values when running in prod. Other environments are left untouched.
func (c *Config) ResolveOrigins(ctx context.Context) error {
	if c.Environment != "prod" {
		return nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	return c.resolveOrigins(ctxWithTimeout, ssm.NewFromConfig(awsCfg))
}

func (c *Config) resolveOrigins(ctx context.Context, client parameterGetter) error {
	apiURL, err := getParameterStoreValue(ctx, client, c.SSM.APIURLParam)
	if err != nil {
		return err
	}
	wsURL, err := getParameterStoreValue(ctx, client, c.SSM.WSURLParam)
	if err != nil {
		return err
	}
	if apiURL != "" {
		c.API.BaseURL = apiURL
	}
	if wsURL != "" {
		c.WS.URL = wsURL
	}
	return nil
}

// getParameterStoreValue returns "" for an unset name or an empty parameter.
func getParameterStoreValue(ctx context.Context, client parameterGetter, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	decrypt := true
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}
	return *result.Parameter.Value, nil
}

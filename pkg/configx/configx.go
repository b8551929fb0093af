package configx

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/marcodd23/go-micro-dbcmd/pkg/validator"
	"github.com/spf13/viper"
)

const (
	defaultConfigBaseName = "property"
	defaultDotEnvFile     = ".env"
)

func LoadConfigForEnv(config Config) error {
	return ReadConfiguration(getEnvPropertyFileName(defaultConfigBaseName), config)
}

// LoadConfigFromPathForEnv - search the property-<ENV> properties in the given search path (for ex. "./config" )
func LoadConfigFromPathForEnv(searchPath string, config Config) error {
	if searchPath == "" {
		return LoadConfigForEnv(config)
	}

	searchPath = strings.TrimSuffix(searchPath, "/")
	return ReadConfiguration(getEnvPropertyFileName(fmt.Sprintf("%s/%s", searchPath, defaultConfigBaseName)), config)
}

// ReadConfiguration reads the configuration from the file and environment variables, then validates it.
// Variables found in a .env file of the working directory are loaded first; they never override
// variables already set in the process environment.
func ReadConfiguration(configFilePath string, config Config) error {
	log.Println("config filepath: ", configFilePath)

	if err := loadDotEnv(defaultDotEnvFile); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(configFilePath) // Specify the file to read
	v.SetConfigType("yaml")         // Specify the config file type (yaml)
	v.AutomaticEnv()                // Enable automatic environment variable binding

	// Replace dots in keys with underscores in environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err == nil {
		log.Printf("Reading configuration from config file: %s. Set environment variables will OVERRIDE these values.", configFilePath)
	} else {
		log.Println("No configuration file found, reading configuration from environment variables.")
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unable to decode into config struct, %v", err)
	}

	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("unable to load %s: %w", path, err)
	}

	return nil
}

func getEnvPropertyFileName(baseFileName string) string {
	env := strings.ToUpper(os.Getenv("ENVIRONMENT"))
	if !checkIfLocalEnv(env) {
		return fmt.Sprintf("%s-%s.yaml", baseFileName, strings.ToLower(env))
	}

	return fmt.Sprintf("%s.yaml", baseFileName)
}

func checkIfLocalEnv(env string) bool {
	switch strings.ToUpper(env) {
	case "DEV", "STAGE", "PROD":
		return false
	}

	return true
}

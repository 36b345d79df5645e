package mrjob

import (
	"runtime"

	"github.com/spf13/viper"
)

func loadConfig() {
	viper.SetConfigName("mrjobrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.mrjob")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("mrjob")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"verbose":         false,
		"workingLocation": ".",
		"parallelism":     runtime.NumCPU(), // Number of engine partitions
		"maxConcurrency":  runtime.NumCPU(), // Maximum number of concurrent partition workers
		"numOutputParts":  1,
		"skipBadRecords":  false,
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"verbose":          "v",
		"working_location": "o",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}

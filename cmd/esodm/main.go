package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jonesrussell/esodm/esindex"
	"github.com/jonesrussell/esodm/logger"
	"github.com/jonesrussell/esodm/mapping"
	"github.com/jonesrussell/esodm/schema"
)

// Version is injected at build time
var Version = "dev"

func main() {
	if err := Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing.
func Execute(args []string) error {
	rootCmd := &cobra.Command{
		Use:           "esodm",
		Short:         "Compile entity schemas into Elasticsearch mappings",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newMappingCmd(), newApplyCmd())
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newMappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Compile an entity's mapping to JSON on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMapping(cmd, cmd.Flags())
		},
	}
	cmd.Flags().StringP("schema", "s", "", "Path to the schema YAML file")
	cmd.Flags().StringP("entity", "e", "", "Entity name to compile")
	cmd.Flags().Bool("properties-only", false, "Emit only the properties tree, without root directives")
	cmd.Flags().Bool("no-type-hints", false, "Disable _class type-hint emission")
	return cmd
}

func runMapping(cmd *cobra.Command, flags *pflag.FlagSet) error {
	registry, entity, err := loadEntity(flags)
	if err != nil {
		return err
	}

	var opts []mapping.Option
	if noHints, _ := flags.GetBool("no-type-hints"); noHints {
		opts = append(opts, mapping.WithTypeHints(false))
	}
	builder := mapping.NewBuilder(registry, opts...)

	var out string
	if propsOnly, _ := flags.GetBool("properties-only"); propsOnly {
		out, err = builder.BuildPropertyMapping(entity)
	} else {
		out, err = builder.Build(entity)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the entity's index with its compiled mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), cmd.Flags())
		},
	}
	cmd.Flags().StringP("schema", "s", "", "Path to the schema YAML file")
	cmd.Flags().StringP("entity", "e", "", "Entity name to apply")
	cmd.Flags().String("url", "", "Elasticsearch URL (env: ESODM_URL)")
	cmd.Flags().String("username", "", "Elasticsearch username (env: ESODM_USERNAME)")
	cmd.Flags().String("password", "", "Elasticsearch password (env: ESODM_PASSWORD)")
	return cmd
}

func runApply(ctx context.Context, flags *pflag.FlagSet) error {
	registry, entity, err := loadEntity(flags)
	if err != nil {
		return err
	}

	cfg, err := loadClientConfig(flags)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if ctx == nil {
		ctx = context.Background()
	}
	client, err := esindex.NewClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	return client.CreateForEntity(ctx, entity, mapping.NewBuilder(registry), nil)
}

// loadClientConfig resolves connection settings with flags taking priority
// over ESODM_* environment variables.
func loadClientConfig(flags *pflag.FlagSet) (esindex.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESODM")
	v.AutomaticEnv()
	for _, key := range []string{"url", "username", "password"} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return esindex.Config{}, err
		}
	}

	return esindex.Config{
		URL:      v.GetString("url"),
		Username: v.GetString("username"),
		Password: v.GetString("password"),
	}, nil
}

func loadEntity(flags *pflag.FlagSet) (*schema.Registry, *schema.Entity, error) {
	schemaPath, _ := flags.GetString("schema")
	if schemaPath == "" {
		return nil, nil, fmt.Errorf("--schema is required")
	}
	entityName, _ := flags.GetString("entity")

	registry := schema.NewRegistry()
	entities, err := schema.RegisterFile(registry, schemaPath)
	if err != nil {
		return nil, nil, err
	}
	if len(entities) == 0 {
		return nil, nil, fmt.Errorf("schema file %s defines no entities", schemaPath)
	}

	if entityName == "" {
		if len(entities) > 1 {
			return nil, nil, fmt.Errorf("schema defines %d entities; pick one with --entity", len(entities))
		}
		return registry, entities[0], nil
	}

	entity, ok := registry.Get(entityName)
	if !ok {
		return nil, nil, fmt.Errorf("schema defines no entity named %q", entityName)
	}
	return registry, entity, nil
}

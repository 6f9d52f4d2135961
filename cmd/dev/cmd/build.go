package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	buildTarget = "./cmd/als"
	buildOutput = "dist/als"
	// builder image with the hidapi toolchain required by the MCP2221 adapter
	builderImage = "gophertribe/gobuild:1.25-bookworm"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the als cli",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			goos, _ := flags.GetString("os")
			arch, _ := flags.GetString("arch")
			version, _ := flags.GetString("version")
			crossOS, _ := flags.GetString("cross-os")
			crossArch, _ := flags.GetString("cross-arch")

			if goos != runtime.GOOS || arch != runtime.GOARCH {
				noCache, err := flags.GetBool("no-cache")
				if err != nil {
					return fmt.Errorf("could not get no-cache flag: %w", err)
				}
				slog.Info("building in docker", "os", goos, "arch", arch, "image", builderImage)
				return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", goos, arch),
					[]string{"build", "--version", version, "--cross-os", crossOS, "--cross-arch", crossArch},
					build.DockerBuildOpts{
						NoCache: noCache,
						Image:   builderImage,
					})
			}
			if crossOS != "" && crossArch != "" {
				goos = crossOS
				arch = crossArch
			}
			slog.Info("building", "target", buildTarget, "os", goos, "arch", arch, "version", version)
			// cgo is needed by karalabe/hid
			return build.GoBuild(buildOutput, buildTarget, build.GoBuildOpts{
				Version:       version,
				InjectVersion: true,
				ConfigPackage: "main",
				EnableCgo:     true,
				Arch:          arch,
				OS:            goos,
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	return cmd
}

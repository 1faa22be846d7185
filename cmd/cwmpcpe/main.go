package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog"

	"cwmpcpe/internal/config"
	"cwmpcpe/internal/simulator"
)

var (
	acsURL         *string
	serialNumber   *string
	macAddress     *string
	manufacturer   *string
	oui            *string
	productClass   *string
	username       *string
	password       *string
	sessionTimeout *int
	dataModelFile  *string
)

var rootCmd = &cobra.Command{
	Use:   "cwmpcpe",
	Short: "Runs a CWMP (TR-069) CPE simulator",
	RunE:  run,
}

func init() {
	acsURL = rootCmd.Flags().String("acs-url", "", "ACS URL to contact (required)")
	serialNumber = rootCmd.Flags().String("serial", "CWMPCPE0000001", "device serial number")
	macAddress = rootCmd.Flags().String("mac", "00:11:22:33:44:55", "device MAC address")
	manufacturer = rootCmd.Flags().String("manufacturer", "cwmpcpe", "device manufacturer")
	oui = rootCmd.Flags().String("oui", "000000", "device manufacturer OUI")
	productClass = rootCmd.Flags().String("product-class", "Simulator", "device product class")
	username = rootCmd.Flags().String("username", "usertest", "default ACS credentials username")
	password = rootCmd.Flags().String("password", "passtest", "default ACS credentials password")
	sessionTimeout = rootCmd.Flags().Int("session-timeout-ms", 10000, "session timeout in milliseconds (the ACS socket timeout is this plus 30s)")
	dataModelFile = rootCmd.Flags().String("data-model-file", "", "optional YAML data-model override file")

	_ = rootCmd.MarkFlagRequired("acs-url")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.ACSURL = *acsURL
	cfg.SerialNumber = *serialNumber
	cfg.MACAddress = *macAddress
	cfg.Manufacturer = *manufacturer
	cfg.OUI = *oui
	cfg.ProductClass = *productClass
	cfg.Username = *username
	cfg.Password = *password
	cfg.SessionTimeout = time.Duration(*sessionTimeout) * time.Millisecond
	cfg.DataModelFile = *dataModelFile

	sim, err := simulator.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	klog.Infof("cwmpcpe: starting, ACS=%s serial=%s", cfg.ACSURL, cfg.SerialNumber)
	return sim.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("cwmpcpe: %v", err)
		os.Exit(1)
	}
}

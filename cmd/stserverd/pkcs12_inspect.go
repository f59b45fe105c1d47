// STSERVER - SM2/SM3 Secure Channel Negotiation Server
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of STSERVER.
//
// STSERVER is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// STSERVER is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with STSERVER. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	pkcs12 "github.com/emmansun/go-pkcs12"
	"github.com/spf13/cobra"
)

var pkcs12Password string

func init() {
	pkcs12InspectCmd.Flags().StringVarP(&pkcs12Password, "password", "p", "", "PKCS#12 bundle password")
	pkcs12Cmd.AddCommand(pkcs12InspectCmd)
	rootCmd.AddCommand(pkcs12Cmd)
}

var pkcs12Cmd = &cobra.Command{
	Use:   "pkcs12",
	Short: "Inspect PKCS#12 certificate bundles",
}

var pkcs12InspectCmd = &cobra.Command{
	Use:   "inspect <bundle>",
	Short: "Print the certificate chain stored in a PKCS#12 bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runPKCS12Inspect,
}

func runPKCS12Inspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	_, cert, caCerts, err := pkcs12.DecodeChain(raw, pkcs12Password)
	if err != nil {
		return fmt.Errorf("decode bundle: %w", err)
	}

	out := cmd.OutOrStdout()
	if cert != nil {
		fmt.Fprintf(out, "leaf: serial=%s subject=%q not_before=%s not_after=%s\n",
			cert.SerialNumber.String(), cert.Subject.String(), cert.NotBefore, cert.NotAfter)
	}
	for i, ca := range caCerts {
		fmt.Fprintf(out, "ca[%d]: serial=%s subject=%q not_before=%s not_after=%s\n",
			i, ca.SerialNumber.String(), ca.Subject.String(), ca.NotBefore, ca.NotAfter)
	}
	return nil
}

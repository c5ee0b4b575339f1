// Command wallet_client exercises the backend API from the command line.
// It signs authentication challenges with a local private key the way a
// browser wallet would.
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/invisicipher/secure-image-backend/api"
	"github.com/invisicipher/secure-image-backend/api/clients"
	"github.com/invisicipher/secure-image-backend/auth"
	"github.com/invisicipher/secure-image-backend/interfaces"
)

var serverFlag = &cli.StringFlag{
	Name:  "server",
	Value: "http://127.0.0.1:8080",
	Usage: "base URL of the backend server",
}

var keyFlag = &cli.StringFlag{
	Name:  "key",
	Usage: "hex-encoded private key of the wallet",
}

func main() {
	app := &cli.App{
		Name:  "wallet-client",
		Usage: "Interact with the secure image backend as a wallet holder",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "register a profile for the wallet address",
				Flags: []cli.Flag{serverFlag, keyFlag,
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "role", Value: "patient", Usage: "admin or patient"},
				},
				Action: runRegister,
			},
			{
				Name:   "login",
				Usage:  "run the challenge-response flow and print a bearer token",
				Flags:  []cli.Flag{serverFlag, keyFlag},
				Action: runLogin,
			},
			{
				Name:  "check",
				Usage: "check whether an address is registered",
				Flags: []cli.Flag{serverFlag,
					&cli.StringFlag{Name: "address", Required: true},
				},
				Action: runCheck,
			},
			{
				Name:  "records",
				Usage: "list anchored records for the wallet address",
				Flags: []cli.Flag{serverFlag, keyFlag},
				Action: runRecords,
			},
			{
				Name:  "retrieve",
				Usage: "retrieve the hidden image behind a content identifier",
				Flags: []cli.Flag{serverFlag, keyFlag,
					&cli.StringFlag{Name: "cid", Required: true},
					&cli.StringFlag{Name: "out", Value: "revealed.png", Usage: "output file"},
				},
				Action: runRetrieve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func walletFor(cCtx *cli.Context) (*clients.BackendClient, string, error) {
	keyHex := cCtx.String("key")
	if keyHex == "" {
		return nil, "", fmt.Errorf("--key is required")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, "", fmt.Errorf("invalid private key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	return &clients.BackendClient{ServerAddr: cCtx.String("server")}, address, nil
}

// login runs the full challenge-response flow for the configured key.
func login(cCtx *cli.Context) (*clients.BackendClient, string, error) {
	client, address, err := walletFor(cCtx)
	if err != nil {
		return nil, "", err
	}
	key, _ := crypto.HexToECDSA(cCtx.String("key"))

	challenge, err := client.Challenge(address)
	if err != nil {
		return nil, "", fmt.Errorf("challenge request failed: %w", err)
	}

	sig, err := crypto.Sign(auth.PersonalMessageHash(challenge), key)
	if err != nil {
		return nil, "", fmt.Errorf("signing failed: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	if _, err := client.Authenticate(address, "0x"+hex.EncodeToString(sig)); err != nil {
		return nil, "", fmt.Errorf("authentication failed: %w", err)
	}
	return client, address, nil
}

func runRegister(cCtx *cli.Context) error {
	client, address, err := walletFor(cCtx)
	if err != nil {
		return err
	}

	role := cCtx.String("role")
	data, err := client.Register(api.RegisterRequest{
		Address:  address,
		Username: cCtx.String("username"),
		Role:     role,
		Permissions: defaultPermissions(role),
	})
	if err != nil {
		return err
	}

	fmt.Printf("registered %s as %s (%s)\n", data.Address, data.Username, data.Role)
	if data.Anchored {
		fmt.Printf("credential anchored in tx %s (block %d)\n", data.TxHash, data.BlockNumber)
	} else {
		fmt.Printf("warning: credential not anchored: %s\n", data.AnchorError)
	}
	return nil
}

func runLogin(cCtx *cli.Context) error {
	client, address, err := login(cCtx)
	if err != nil {
		return err
	}
	fmt.Printf("authenticated as %s\n", address)
	fmt.Println(client.Token)
	return nil
}

func runCheck(cCtx *cli.Context) error {
	client := &clients.BackendClient{ServerAddr: cCtx.String("server")}
	data, err := client.CheckUser(cCtx.String("address"))
	if err != nil {
		return err
	}
	if data.Registered {
		fmt.Printf("registered (%s)\n", data.Role)
	} else {
		fmt.Println("not registered")
	}
	return nil
}

func runRecords(cCtx *cli.Context) error {
	client, address, err := login(cCtx)
	if err != nil {
		return err
	}

	records, err := client.Records(address)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no records")
		return nil
	}
	for _, record := range records {
		fmt.Printf("%s", record.CID)
		if record.TxHash != "" {
			fmt.Printf("  tx=%s block=%d", record.TxHash, record.BlockNumber)
		}
		fmt.Println()
	}
	return nil
}

func runRetrieve(cCtx *cli.Context) error {
	client, _, err := login(cCtx)
	if err != nil {
		return err
	}

	image, err := client.Retrieve(cCtx.String("cid"))
	if err != nil {
		return err
	}

	out := cCtx.String("out")
	if err := os.WriteFile(out, image, 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes to %s\n", len(image), out)
	return nil
}

func defaultPermissions(role string) interfaces.Permissions {
	return interfaces.Permissions{
		CanRead:   true,
		CanWrite:  role == "admin",
		CanDelete: role == "admin",
	}
}

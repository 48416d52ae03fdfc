// Command hashpw prints an argon2id hash for STOREFRONT_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

func main() {
	password := flag.String("password", "", "password to hash; read from stdin when empty")
	generate := flag.Int("generate", 0, "generate a random password of this length and hash it")
	flag.Parse()

	_ = godotenv.Load()

	var params config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &params); err != nil {
		fail("load argon parameters: %v", err)
	}

	plain := *password
	switch {
	case *generate > 0:
		generated, err := security.GeneratePassword(*generate)
		if err != nil {
			fail("generate password: %v", err)
		}
		plain = generated
		fmt.Fprintln(os.Stderr, "password:", plain)
	case plain == "":
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fail("read password from stdin: %v", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}

	hash, err := security.HashPassword(plain, params)
	if err != nil {
		fail("hash password: %v", err)
	}
	fmt.Println(hash)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

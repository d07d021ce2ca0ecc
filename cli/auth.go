package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/howeyc/gopass"
	"github.com/spf13/pflag"

	"github.com/la5nta/memorymap/app"
)

const ExampleSignIn = `
  signin                          Prompt for email and password.
  signin -e ola@example.com       Prompt for password only.
`

func readPassword(prompt string) (string, error) {
	passwd, err := gopass.GetPasswdPrompt(prompt+": ", true, os.Stdin, os.Stdout)
	if err != nil {
		return "", err
	}
	return string(passwd), nil
}

func SignInHandle(ctx context.Context, a *app.App, args []string) {
	set := pflag.NewFlagSet("signin", pflag.ExitOnError)
	email := set.StringP("email", "e", "", "")
	set.Parse(args)

	cancel := exitOnContextCancellation(ctx)
	if *email == "" {
		*email = prompt("Email", "")
	}
	password, err := readPassword("Password")
	cancel()
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	if err := a.SignIn(ctx, *email, password); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	a.WaitIdle()
	fmt.Printf("Signed in as %s.\n", a.State().Username())
}

func SignUpHandle(ctx context.Context, a *app.App, args []string) {
	set := pflag.NewFlagSet("signup", pflag.ExitOnError)
	email := set.StringP("email", "e", "", "")
	username := set.StringP("username", "u", "", "")
	set.Parse(args)

	cancel := exitOnContextCancellation(ctx)

	if *email == "" {
		*email = prompt("Email", "")
	}
	if *username == "" {
		*username = prompt("Username", strings.Split(*email, "@")[0])
	}
	password, err := readPassword("Password")
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	if again, _ := readPassword("Repeat password"); again != password {
		fmt.Println("ERROR: Passwords do not match.")
		os.Exit(1)
	}
	cancel()

	if err := a.SignUp(ctx, *email, password, *username); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	a.WaitIdle()
	if a.State().User() != nil {
		fmt.Printf("Signed up and signed in as %s.\n", a.State().Username())
		return
	}
	fmt.Println("Sign up successful! Please check your email to confirm your account before signing in.")
}

func SignOutHandle(ctx context.Context, a *app.App, _ []string) {
	if a.State().User() == nil {
		fmt.Println("Not signed in.")
		return
	}
	if err := a.SignOut(ctx); err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	a.WaitIdle()
}

func WhoamiHandle(ctx context.Context, a *app.App, _ []string) {
	WriteWhoami(os.Stdout, a)
}

package main

const subcommandUsageTemplate = `Usage:
  {{.UseLine}}
` + subcommandSections

// subcommandSections lists commands and flags without cobra's example,
// aliases and additional help topics.
const subcommandSections = `
{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}
{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

const rootUsageTemplate = `Usage:
  bstudio <image> [flags]
{{if .HasAvailableSubCommands}}  {{.CommandPath}} [command]
{{end}}` + subcommandSections

// envUsageTemplate adds the bare-invocation line: `bstudio env` runs status.
const envUsageTemplate = `Usage:
  {{.UseLine}}
  {{.CommandPath}} [command]
` + subcommandSections

const shellHelp = `Commands:
  open <path>        select an image (replaces the current one)
  clear              drop the current image
  mode <m>           capture mode: digital or embossed
  lang <code|none>   target language, or none
  submit             send the current image (ignored while one is in flight)
  status             show the current state
  wait               block until the in-flight submission settles
  show               print the full result
  copy               print only the translated text
  save [path]        write the segmentation image
  params             show mode and target language
  help               this list
  quit               leave the shell
`

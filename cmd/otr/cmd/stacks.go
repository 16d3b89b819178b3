package cmd

import (
	"fmt"

	"github.com/markkurossi/tabulate"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

var stacksCmd = &cobra.Command{
	Use:   "stacks",
	Short: "List the layer stack presets",
	Long: `List the layer stack presets accepted by "otr route --layers" and the
order in which "otr route --adaptive" tries them.`,
	Args: cobra.NoArgs,
	RunE: runStacks,
}

func init() {
	rootCmd.AddCommand(stacksCmd)
}

func runStacks(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Preset").SetAlign(tabulate.ML)
	tab.Header("Layers").SetAlign(tabulate.MR)
	tab.Header("Routable").SetAlign(tabulate.MR)
	tab.Header("Stackup").SetAlign(tabulate.ML)

	for _, name := range rules.PresetNames() {
		stack, err := rules.Preset(name)
		if err != nil {
			return err
		}
		stackup := ""
		for i, l := range stack.Layers() {
			if i > 0 {
				stackup += " / "
			}
			stackup += l.Name + " " + l.Type.String()
			if l.PlaneNet != "" {
				stackup += " (" + l.PlaneNet + ")"
			}
		}
		row := tab.Row()
		row.Column(name)
		row.Column(fmt.Sprintf("%d", stack.Count()))
		row.Column(fmt.Sprintf("%d", len(stack.RoutableLayers())))
		row.Column(stackup)
	}
	tab.Print(w)

	fmt.Fprintln(w)
	printKeyValue(w, "Adaptive", fmt.Sprint(rules.AdaptiveSequence))
	return nil
}

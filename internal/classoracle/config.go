package classoracle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// classEntry is one class/interface declaration in a classpath YAML file.
//
// Example:
//
//	classes:
//	  - descriptor: "Ljava/util/AbstractList;"
//	    super: "Ljava/lang/Object;"
//	  - descriptor: "Ljava/util/ArrayList;"
//	    super: "Ljava/util/AbstractList;"
type classEntry struct {
	Descriptor     string   `yaml:"descriptor"`
	Super          string   `yaml:"super"`
	Interface      bool     `yaml:"interface"`
	Interfaces     []string `yaml:"interfaces"`
	VirtualMethods []string `yaml:"virtualMethods"`
}

type classpathFile struct {
	Classes []classEntry `yaml:"classes"`
}

// LoadClasspath reads a YAML classpath description and registers every
// entry on the oracle. Entries may reference each other in any order;
// resolution of super/interfaces happens lazily on first use.
func LoadClasspath(o *Oracle, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("classoracle: read classpath %s: %w", path, err)
	}
	return LoadClasspathBytes(o, data)
}

// LoadClasspathBytes parses and registers a YAML classpath description
// already held in memory (used by tests and by LoadClasspath).
func LoadClasspathBytes(o *Oracle, data []byte) error {
	var file classpathFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("classoracle: parse classpath: %w", err)
	}
	for _, entry := range file.Classes {
		if entry.Descriptor == "" {
			return fmt.Errorf("classoracle: classpath entry missing descriptor")
		}
		o.Register(entry.Descriptor, entry.Super, entry.Interface, entry.Interfaces, entry.VirtualMethods)
	}
	return nil
}

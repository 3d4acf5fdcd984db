// Package fmllibs makes sure instances running legacy Forge Mod Loader have
// the extra libraries FML would otherwise try to download from defunct hosts
// at first launch.
//
// The Task is a no-op unless the instance carries the legacy FML trait, its
// game version appears in the library table and Forge is installed. Missing
// libraries are fetched into the shared cache and copied into the instance's
// library folder; any download or copy failure fails the task.
package fmllibs

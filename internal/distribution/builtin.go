package distribution

import (
	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
)

func init() {
	for _, dist := range builtins(logrus.StandardLogger()) {
		MustRegister(dist)
	}
}

func builtins(logger logrus.FieldLogger) []*Distribution {
	apt := NewAptFamily()
	zypper := NewZypperFamily(logger)
	apk := NewApkFamily()

	return []*Distribution{
		{
			WSLID:         "Ubuntu-24.04",
			UserID:        "Ubuntu-24.04",
			DisplayName:   "Ubuntu",
			Version:       version.Must(version.NewVersion("24.4.0")),
			DirectURL:     "https://wslstorestorage.blob.core.windows.net/wslblob/Ubuntu2404-240425.AppxBundle",
			InstallerFile: "ubuntu2404.exe",
			Family:        apt,
		},
		{
			WSLID:         "Ubuntu-22.04",
			UserID:        "Ubuntu-22.04",
			DisplayName:   "Ubuntu",
			Version:       version.Must(version.NewVersion("22.4.0")),
			DirectURL:     "https://aka.ms/wslubuntu2204",
			InstallerFile: "ubuntu2204.exe",
			Family:        apt,
		},
		{
			// 20.04 的安装包注册为 "Ubuntu"，与调用方使用的标识不同。
			WSLID:         "Ubuntu",
			UserID:        "Ubuntu-20.04",
			DisplayName:   "Ubuntu",
			Version:       version.Must(version.NewVersion("20.4.0")),
			DirectURL:     "https://aka.ms/wslubuntu2004",
			InstallerFile: "ubuntu2004.exe",
			Family:        apt,
		},
		{
			WSLID:         "Ubuntu-18.04",
			UserID:        "Ubuntu-18.04",
			DisplayName:   "Ubuntu",
			Version:       version.Must(version.NewVersion("18.4.0")),
			DirectURL:     "https://aka.ms/wsl-ubuntu-1804",
			InstallerFile: "ubuntu1804.exe",
			Family:        apt,
		},
		{
			WSLID:         "Ubuntu-16.04",
			UserID:        "Ubuntu-16.04",
			DisplayName:   "Ubuntu",
			Version:       version.Must(version.NewVersion("16.4.0")),
			DirectURL:     "https://aka.ms/wsl-ubuntu-1604",
			InstallerFile: "ubuntu1604.exe",
			Family:        apt,
		},
		{
			WSLID:         "Debian",
			UserID:        "Debian",
			DisplayName:   "Debian",
			Version:       version.Must(version.NewVersion("1.0.0")),
			ProductID:     "9msvkqc78pk6",
			InstallerFile: "debian.exe",
			Family:        apt,
		},
		{
			WSLID:         "kali-linux",
			UserID:        "kali-linux",
			DisplayName:   "Kali Linux",
			Version:       version.Must(version.NewVersion("1.0.0")),
			ProductID:     "9pkr34tncv07",
			InstallerFile: "kali.exe",
			Family:        apt,
		},
		{
			WSLID:         "openSUSE-Leap-15.2",
			UserID:        "openSUSE-Leap-15.2",
			DisplayName:   "openSUSE Leap 15.2",
			Version:       version.Must(version.NewVersion("15.2.0")),
			ProductID:     "9mzd0n9z4m4h",
			InstallerFile: "openSUSE-Leap-15.2.exe",
			Family:        zypper,
		},
		{
			WSLID:         "openSUSE-Tumbleweed",
			UserID:        "openSUSE-Tumbleweed",
			DisplayName:   "openSUSE Tumbleweed",
			Version:       version.Must(version.NewVersion("1.0.0")),
			ProductID:     "9mssk2zxxn11",
			InstallerFile: "openSUSE-Tumbleweed.exe",
			Family:        zypper,
		},
		{
			WSLID:         "Alpine",
			UserID:        "Alpine",
			DisplayName:   "Alpine",
			Version:       version.Must(version.NewVersion("1.0.3")),
			ProductID:     "9p804crf0395",
			InstallerFile: "Alpine.exe",
			Family:        apk,
		},
	}
}
